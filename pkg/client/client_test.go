package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DAGAndCycle(t *testing.T) {
	var got domain.Pipeline
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ValidatePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		isDAG := len(got.Edges) == 0
		_ = json.NewEncoder(w).Encode(domain.ValidationResult{
			NumNodes: len(got.Nodes),
			NumEdges: len(got.Edges),
			IsDAG:    isDAG,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)

	result, err := c.Validate(context.Background(), &domain.Pipeline{
		Nodes: []domain.PipelineNode{{ID: "a"}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsDAG)

	result, err = c.Validate(context.Background(), &domain.Pipeline{
		Nodes: []domain.PipelineNode{{ID: "a"}},
		Edges: []domain.PipelineEdge{{ID: "e", Source: "a", Target: "a"}},
	})
	require.NoError(t, err, "a cycle is a result, not an error")
	assert.False(t, result.IsDAG)
	assert.Equal(t, 1, result.NumEdges)
	assert.Equal(t, "a", got.Nodes[0].ID)
}

func TestValidate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_REFERENCE","message":"edge e references unknown target node merge-9"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Validate(context.Background(), &domain.Pipeline{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "INVALID_REFERENCE", apiErr.Code)
}

func TestValidate_TransportErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url, time.Second).Validate(context.Background(), &domain.Pipeline{})
		var tErr *TransportError
		assert.ErrorAs(t, err, &tErr)
	})

	t.Run("non-json error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second).Validate(context.Background(), &domain.Pipeline{})
		var tErr *TransportError
		assert.ErrorAs(t, err, &tErr)
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second).Validate(context.Background(), &domain.Pipeline{})
		var tErr *TransportError
		assert.ErrorAs(t, err, &tErr)
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		_, err := New(srv.URL, 50*time.Millisecond).Validate(context.Background(), &domain.Pipeline{})
		var tErr *TransportError
		assert.ErrorAs(t, err, &tErr)
	})
}

func TestValidate_NilPipeline(t *testing.T) {
	_, err := New("", 0).Validate(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrNilPipeline))
}

func TestNew_Defaults(t *testing.T) {
	c := New("", 0)
	assert.Equal(t, DefaultServer, c.BaseURL)
	assert.Equal(t, DefaultTimeout, c.HTTPClient.Timeout)
}
