package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainJSON = `{"nodes":[{"id":"input-1","type":"customInput"},{"id":"text-1","type":"text"},{"id":"output-1","type":"customOutput"}],
"edges":[{"id":"e1","source":"input-1","target":"text-1"},{"id":"e2","source":"text-1","target":"output-1"}]}`

const cycleYAML = `nodes:
  - id: text-1
    type: text
  - id: transform-1
    type: transform
edges:
  - id: e1
    source: text-1
    target: transform-1
  - id: e2
    source: transform-1
    target: text-1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakeServer answers like the real validator for small acyclic checks
func fakeServer(t *testing.T, isDAG bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p domain.Pipeline
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		_ = json.NewEncoder(w).Encode(domain.ValidationResult{
			NumNodes: len(p.Nodes),
			NumEdges: len(p.Edges),
			IsDAG:    isDAG,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidate_DAG(t *testing.T) {
	srv := fakeServer(t, true)
	path := writeFile(t, "chain.json", chainJSON)

	code, out, _ := execute("validate", "--server", srv.URL, "--order", path)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "nodes: 3\nedges: 2\nis_dag: true")
	assert.Contains(t, out, "1. input-1\n  2. text-1\n  3. output-1")
}

func TestValidate_Cycle(t *testing.T) {
	srv := fakeServer(t, false)
	path := writeFile(t, "cycle.yaml", cycleYAML)

	code, out, errOut := execute("validate", "--server", srv.URL, path)
	assert.Equal(t, ExitCyclic, code)
	assert.Contains(t, out, "is_dag: false")
	assert.Contains(t, errOut, "warning: pipeline contains a cycle (2 nodes, 2 edges)")
}

func TestValidate_Local(t *testing.T) {
	path := writeFile(t, "cycle.yml", cycleYAML)
	code, _, errOut := execute("validate", "--local", path)
	assert.Equal(t, ExitCyclic, code)
	assert.Contains(t, errOut, "contains a cycle")

	path = writeFile(t, "dangling.json", `{"nodes":[{"id":"a"}],"edges":[{"id":"e","source":"a","target":"merge-9"}]}`)
	code, _, errOut = execute("validate", "--local", path)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "merge-9")
}

func TestValidate_JSONOutput(t *testing.T) {
	srv := fakeServer(t, true)
	path := writeFile(t, "chain.json", chainJSON)

	code, out, _ := execute("validate", "--server", srv.URL, "--json", path)
	assert.Equal(t, ExitOK, code)

	var result domain.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.ValidationResult{NumNodes: 3, NumEdges: 2, IsDAG: true}, result)
}

func TestValidate_BackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	path := writeFile(t, "chain.json", chainJSON)
	code, out, errOut := execute("validate", "--server", url, "--timeout", "1s", path)
	assert.Equal(t, ExitError, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "backend unreachable")
}

func TestValidate_UsageErrors(t *testing.T) {
	code, _, _ := execute("validate")
	assert.Equal(t, ExitError, code)

	code, _, errOut := execute("validate", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "read pipeline")

	path := writeFile(t, "broken.json", `{"nodes": [`)
	code, _, errOut = execute("validate", path)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "parse pipeline")
}

func TestReadPipeline_Stdin(t *testing.T) {
	p, err := readPipeline(strings.NewReader(chainJSON), "-")
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 3)
	assert.Equal(t, "text-1", p.Edges[0].Target)
}

func TestNodeTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/node-types", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"node_types": domain.Catalog()})
	}))
	defer srv.Close()

	code, out, _ := execute("node-types", "--server", srv.URL)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "merge")
	assert.Contains(t, out, "input1(target)")
}
