package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/flowgraph/mpcflow/internal/compiler"
	"github.com/flowgraph/mpcflow/internal/infrastructure/metrics"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

type compileOptions struct {
	format      string
	compression string
	outputDir   string
	parallel    int
	showMetrics bool
	job         compiler.JobOptions
}

func newCompileCmd(a *app) *cobra.Command {
	var opts compileOptions

	cmd := &cobra.Command{
		Use:   "compile [file...]",
		Short: "Compile graph documents into execution plans",
		Long: `Compile one or more graph documents. Use "-" to read from stdin.
A single document without --output-dir is written to stdout; several
documents are compiled concurrently, one plan file each.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, a, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "", "plan encoding: json or msgpack (default from config)")
	f.StringVar(&opts.compression, "compress", "", "plan compression: none, gzip or zstd (default from config)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for plan files")
	f.IntVarP(&opts.parallel, "parallel", "p", runtime.GOMAXPROCS(0), "documents compiled at once")
	f.BoolVar(&opts.showMetrics, "metrics", false, "print compiler metrics to stderr when done")
	f.StringVar(&opts.job.Name, "job-name", "", "job name stamped on the plan")
	f.StringVar(&opts.job.CreateParticipantID, "creator", "", "participant creating the job")
	return cmd
}

func runCompile(cmd *cobra.Command, a *app, opts compileOptions, files []string) error {
	out := a.cfg.Output
	if opts.format != "" {
		out.Format = opts.format
	}
	if opts.compression != "" {
		out.Compression = opts.compression
	}
	serializer, err := out.Serializer()
	if err != nil {
		return err
	}
	if len(files) > 1 && opts.outputDir == "" {
		return fmt.Errorf("compiling %d documents needs --output-dir", len(files))
	}

	job := a.cfg.Job
	if cmd.Flags().Changed("job-name") {
		job.Name = opts.job.Name
	}
	if cmd.Flags().Changed("creator") {
		job.CreateParticipantID = opts.job.CreateParticipantID
	}
	c := compiler.New(
		compiler.WithLogger(a.log.WithName("compiler")),
		compiler.WithJobOptions(job),
	)

	// Every document is attempted; failures are reported together
	errs := make([]error, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}
	for i, file := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			errs[i] = a.compileOne(c, serializer, file, opts.outputDir)
			return nil
		})
	}
	_ = g.Wait()

	if opts.showMetrics {
		if err := metrics.WritePrometheus(a.stderr); err != nil {
			return err
		}
	}
	return multierr.Combine(errs...)
}

func (a *app) compileOne(c *compiler.Compiler, s *serialization.Serializer, file, dir string) error {
	doc, err := a.readDocument(file)
	if err != nil {
		return err
	}
	res, err := c.Compile(doc.Nodes, doc.Edges)
	for _, w := range res.Warnings {
		fmt.Fprintf(a.stderr, "%s: warning: %s\n", file, w.Error())
	}
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	data, err := s.Serialize(res.Plan)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if dir == "" {
		_, err = a.stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := planPath(dir, file, s.Codec())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	a.log.Info("plan written", "input", file, "output", path, "tasks", len(res.Plan.TaskList))
	return nil
}
