package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNodeTypesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node-types",
		Short: "List the node types the server knows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := root.client().NodeTypes(cmd.Context())
			if err != nil {
				return describeFailure(err)
			}

			out := cmd.OutOrStdout()
			for _, spec := range specs {
				var handles []string
				for _, h := range spec.Handles {
					handles = append(handles, fmt.Sprintf("%s(%s)", h.Name, h.Role))
				}
				fmt.Fprintf(out, "%-12s %s\n", spec.Type, strings.Join(handles, " "))
			}
			return nil
		},
	}
}
