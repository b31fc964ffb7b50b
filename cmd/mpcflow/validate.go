package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgraph/mpcflow/internal/compiler"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

// errInvalid signals that diagnostics were printed and the document failed
var errInvalid = errors.New("document has errors")

func newValidateCmd(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Report every error and warning of a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(args[0])
			if err != nil {
				return err
			}
			res, err := compiler.New(compiler.WithLogger(a.log.WithName("compiler"))).Compile(doc.Nodes, doc.Edges)

			var issues validation.Issues
			if err != nil && !errors.As(err, &issues) {
				return err
			}
			for _, d := range issues {
				fmt.Fprintf(a.stdout, "error   %-26s %s\n", d.Code, d.Error())
			}
			for _, d := range res.Warnings {
				fmt.Fprintf(a.stdout, "warning %-26s %s\n", d.Code, d.Error())
			}
			fmt.Fprintf(a.stdout, "%d error(s), %d warning(s)\n", len(issues), len(res.Warnings))

			if len(issues) > 0 || (strict && len(res.Warnings) > 0) {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}
