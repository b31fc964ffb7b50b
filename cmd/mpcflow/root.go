package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/flowgraph/mpcflow/internal/adapters/repository/memory"
	"github.com/flowgraph/mpcflow/internal/adapters/repository/postgres"
	"github.com/flowgraph/mpcflow/internal/adapters/repository/sqlite"
	"github.com/flowgraph/mpcflow/internal/config"
	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/infrastructure/logging"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	cfg        *config.Config
	log        logr.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, log: logr.Discard()}

	root := &cobra.Command{
		Use:   "mpcflow",
		Short: "Compile privacy-preserving compute workflows into execution plans",
		Long: `mpcflow reads workflow canvases (JSON or YAML graph documents),
checks them and compiles them into the job plan consumed by the
secure computation backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		newCompileCmd(a),
		newValidateCmd(a),
		newDraftCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.WithName("mpcflow")
	return nil
}

// readDocument parses a graph document from path, or stdin for "-"
func (a *app) readDocument(path string) (*graph.Document, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	doc, err := graph.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// draftStore is a draft.Saver the CLI closes when done
type draftStore interface {
	draft.Saver
	Close() error
}

// openDrafts opens the draft store selected by the configuration
func (a *app) openDrafts(ctx context.Context) (draftStore, error) {
	sc := a.cfg.Store
	serializer, err := sc.Serializer()
	if err != nil {
		return nil, err
	}
	switch sc.Driver {
	case "memory":
		return memory.NewDraftSaver(memory.Config{
			DefaultTTL: sc.TTL,
			Serializer: serializer,
			Logger:     a.log.WithName("drafts"),
		}), nil
	case "sqlite":
		return sqlite.Open(ctx, sc.DSN, sc.Table, serializer)
	case "postgres":
		return postgres.Open(ctx, sc.DSN, sc.Table, serializer)
	}
	return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
}

// planPath names the output file of a compiled document
func planPath(dir, input, format string) string {
	base := filepath.Base(input)
	if input == "-" {
		base = "stdin"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".plan."+format)
}
