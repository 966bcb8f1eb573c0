package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aescanero/dagflow/pkg/client"
	"github.com/spf13/cobra"
)

// Process exit codes
const (
	ExitOK     = 0
	ExitError  = 1
	ExitCyclic = 2
)

// exitError carries the exit code a command failed with
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, o.timeout)
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dagctl",
		Short:         "Validate visual pipeline graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.server, "server", client.DefaultServer, "dagflow server URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "request timeout")

	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newNodeTypesCmd(opts))

	return cmd
}

// run executes the CLI and maps the outcome to an exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintln(stderr, err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitError
}
