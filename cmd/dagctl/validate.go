package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/dagflow/internal/application/orchestrator"
	"github.com/aescanero/dagflow/pkg/client"
	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type validateOptions struct {
	*rootOptions
	order  bool
	local  bool
	asJSON bool
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a pipeline file is a directed acyclic graph",
		Long: `Reads a pipeline snapshot (JSON or YAML, "-" for stdin) and asks the
server whether it is a DAG. Exits 0 for a DAG, 2 when the pipeline
contains a cycle and 1 for any other failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.order, "order", false, "print a topological order of the nodes")
	cmd.Flags().BoolVar(&opts.local, "local", false, "validate in-process without contacting the server")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *validateOptions, path string) error {
	p, err := readPipeline(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	var result *domain.ValidationResult
	if opts.local {
		result, err = orchestrator.NewValidator().Validate(p)
	} else {
		result, err = opts.client().Validate(cmd.Context(), p)
	}
	if err != nil {
		return describeFailure(err)
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "nodes: %d\nedges: %d\nis_dag: %t\n", result.NumNodes, result.NumEdges, result.IsDAG)
	}

	if !result.IsDAG {
		return &exitError{
			code: ExitCyclic,
			err:  fmt.Errorf("warning: pipeline contains a cycle (%d nodes, %d edges)", result.NumNodes, result.NumEdges),
		}
	}

	if opts.order {
		order, err := orchestrator.NewValidator().TopologicalOrder(p)
		if err != nil {
			return describeFailure(err)
		}
		fmt.Fprintln(out, "order:")
		for i, id := range order {
			fmt.Fprintf(out, "  %d. %s\n", i+1, id)
		}
	}

	return nil
}

// describeFailure turns a validation error into a user-facing message
func describeFailure(err error) error {
	var (
		transport *client.TransportError
		api       *client.APIError
	)
	switch {
	case errors.As(err, &transport):
		return fmt.Errorf("backend unreachable: %w", err)
	case errors.As(err, &api):
		return fmt.Errorf("pipeline rejected: %s", api.Message)
	default:
		return fmt.Errorf("pipeline rejected: %w", err)
	}
}

// readPipeline loads a snapshot from path, or stdin for "-". YAML is
// chosen by extension; anything else is tried as JSON first.
func readPipeline(stdin io.Reader, path string) (*domain.Pipeline, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}

	var p domain.Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		if jerr := json.Unmarshal(data, &p); jerr != nil {
			if yerr := yaml.Unmarshal(data, &p); yerr != nil {
				err = jerr
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse pipeline %s: %w", path, err)
	}
	return &p, nil
}
