package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/infrastructure/metrics"
)

func newDraftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save, list, load and delete canvas drafts",
	}
	cmd.AddCommand(
		newDraftSaveCmd(a),
		newDraftLoadCmd(a),
		newDraftListCmd(a),
		newDraftDeleteCmd(a),
	)
	return cmd
}

func newDraftSaveCmd(a *app) *cobra.Command {
	var (
		workflowID string
		name       string
		id         string
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Store a graph document as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			doc, err := a.readDocument(args[0])
			if err != nil {
				return err
			}
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			d := draft.New(workflowID, name, graph.NewSnapshot(doc.Nodes, doc.Edges))
			d.ID = id
			if d.ID == "" {
				d.ID = uuid.NewString()
			}
			if d.Name == "" {
				base := filepath.Base(args[0])
				d.Name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			d.Metadata.Source = args[0]
			d.Metadata.CreatedBy = os.Getenv("USER")
			d.Metadata.Tags = tags

			if err := store.Save(cmd.Context(), d); err != nil {
				return err
			}
			metrics.IncDraftsSaved()
			fmt.Fprintln(a.stdout, d.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&workflowID, "workflow", "w", "default", "workflow the draft belongs to")
	f.StringVarP(&name, "name", "n", "", "draft name (default: file name)")
	f.StringVar(&id, "id", "", "draft ID; saving an existing ID replaces it (default: random)")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tag to attach, repeatable")
	return cmd
}

func newDraftLoadCmd(a *app) *cobra.Command {
	var (
		output string
		asYAML bool
	)
	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Write a saved draft back out as a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			d, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var data []byte
			if asYAML {
				data, err = d.Document.YAML()
			} else {
				data, err = d.Document.JSON()
			}
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprintln(a.stdout, string(data))
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "write YAML instead of JSON")
	return cmd
}

func newDraftListCmd(a *app) *cobra.Command {
	var filter draft.Filter
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved drafts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			drafts, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWORKFLOW\tNAME\tNODES\tTASKS\tSAVED\tTAGS")
			for _, d := range drafts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					d.ID, d.WorkflowID, d.Name, d.Metadata.Nodes, d.Metadata.Tasks,
					d.Timestamp.Local().Format(time.DateTime), strings.Join(d.Metadata.Tags, ","))
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&filter.WorkflowID, "workflow", "w", "", "only drafts of this workflow")
	f.StringSliceVarP(&filter.Tags, "tag", "t", nil, "only drafts carrying this tag, repeatable")
	f.IntVarP(&filter.Limit, "limit", "l", 0, "maximum drafts to list")
	f.IntVar(&filter.Offset, "offset", 0, "drafts to skip")
	f.DurationVar(&since, "since", 0, "only drafts saved within this duration")
	return cmd
}

func newDraftDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete saved drafts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := a.openDrafts(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			for _, id := range args {
				if derr := store.Delete(cmd.Context(), id); derr != nil {
					err = multierr.Append(err, fmt.Errorf("%s: %w", id, derr))
				}
			}
			return err
		},
	}
}
