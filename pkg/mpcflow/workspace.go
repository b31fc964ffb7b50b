package mpcflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/flowgraph/mpcflow/internal/adapters/repository/memory"
	"github.com/flowgraph/mpcflow/internal/compiler"
	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/plan"
	"github.com/flowgraph/mpcflow/internal/infrastructure/metrics"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

// Re-export core types for convenience
type (
	Node        = graph.Node
	Edge        = graph.Edge
	Document    = graph.Document
	Plan        = plan.ExportJSON
	Result      = compiler.Result
	Diagnostic  = compiler.Diagnostic
	Diagnostics = compiler.Diagnostics
	Draft       = draft.Draft
	DraftFilter = draft.Filter
)

// Option configures a Workspace
type Option func(*Workspace)

// WithLogger sets the logger handed to the store and the compiler
func WithLogger(l logr.Logger) Option {
	return func(w *Workspace) { w.log = l }
}

// WithCompilerOptions passes options through to the compiler
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(w *Workspace) { w.compilerOpts = append(w.compilerOpts, opts...) }
}

// WithDraftSaver replaces the in-memory draft store
func WithDraftSaver(s draft.Saver) Option {
	return func(w *Workspace) { w.saver = s }
}

// WithWorkflowID sets the workflow drafts are saved under
func WithWorkflowID(id string) Option {
	return func(w *Workspace) { w.workflowID = id }
}

// Workspace is one editable canvas with its compiler and draft store.
// The default workspace keeps drafts in memory and is suitable for local
// usage and tests.
type Workspace struct {
	workflowID   string
	store        *graph.Store
	compiler     *compiler.Compiler
	compilerOpts []compiler.Option
	saver        draft.Saver
	log          logr.Logger

	mu    sync.Mutex
	stops []func()
}

// New constructs a workspace
func New(opts ...Option) *Workspace {
	w := &Workspace{log: logr.Discard()}
	for _, opt := range opts {
		opt(w)
	}
	if w.workflowID == "" {
		w.workflowID = "wf-" + uuid.NewString()
	}
	if w.saver == nil {
		w.saver = memory.NewDraftSaver(memory.Config{Logger: w.log.WithName("drafts")})
	}
	w.store = graph.NewStore(
		graph.WithLogger(w.log.WithName("store")),
		graph.WithConnectionCheck(validation.ConnectionPolicy()),
	)
	w.compiler = compiler.New(append([]compiler.Option{compiler.WithLogger(w.log.WithName("compiler"))}, w.compilerOpts...)...)
	w.stops = append(w.stops, w.store.OnChange(func(graph.Event) {
		metrics.SetCanvasSize(w.store.Len())
	}))
	return w
}

// WorkflowID returns the workflow drafts are saved under
func (w *Workspace) WorkflowID() string { return w.workflowID }

// Store exposes the canvas store for direct editing
func (w *Workspace) Store() *graph.Store { return w.store }

// AddNode adds a node to the canvas
func (w *Workspace) AddNode(n *Node) error {
	return w.store.AddNode(n)
}

// RemoveNode removes a node together with the nodes it owns
func (w *Workspace) RemoveNode(id string) {
	w.store.RemoveNode(id)
}

// Connect adds an edge if the connection rules accept it. Rejections are
// counted by reason.
func (w *Workspace) Connect(e *Edge) (*Edge, error) {
	added, err := w.store.Connect(e)
	if err != nil {
		var connErr *validation.ConnectionError
		if errors.As(err, &connErr) {
			metrics.IncConnectionRejected(string(connErr.Reason))
		}
		return nil, err
	}
	return added, nil
}

// Disconnect removes an edge and reports whether it existed
func (w *Workspace) Disconnect(edgeID string) bool {
	return w.store.RemoveEdge(edgeID)
}

// Compile compiles the current canvas
func (w *Workspace) Compile() (*Result, error) {
	return w.compiler.CompileSnapshot(w.store.Snapshot())
}

// Watch calls fn with a fresh compilation after every canvas change, on
// the goroutine that made the change. The returned function stops it.
func (w *Workspace) Watch(fn func(*Result, error)) (stop func()) {
	unsubscribe := w.store.OnChange(func(graph.Event) {
		fn(w.Compile())
	})
	var once sync.Once
	stop = func() { once.Do(unsubscribe) }

	w.mu.Lock()
	w.stops = append(w.stops, stop)
	w.mu.Unlock()
	return stop
}

// Export captures the canvas as a document
func (w *Workspace) Export() *Document {
	return w.store.Export()
}

// Import replaces the canvas with a JSON or YAML document
func (w *Workspace) Import(data []byte) error {
	doc, err := graph.ParseDocument(data)
	if err != nil {
		return err
	}
	return w.store.Import(doc)
}

// SaveDraft stores the current canvas as a new draft
func (w *Workspace) SaveDraft(ctx context.Context, name string, tags ...string) (*Draft, error) {
	d := draft.New(w.workflowID, name, w.store.Snapshot())
	d.ID = uuid.NewString()
	d.Metadata.Source = "workspace"
	d.Metadata.Tags = tags
	if err := w.saver.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	metrics.IncDraftsSaved()
	w.log.Info("draft saved", "draft", d.ID, "nodes", d.Metadata.Nodes, "edges", d.Metadata.Edges)
	return d, nil
}

// LoadDraft replaces the canvas with a saved draft
func (w *Workspace) LoadDraft(ctx context.Context, id string) (*Draft, error) {
	d, err := w.saver.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.store.Import(d.Document); err != nil {
		return nil, fmt.Errorf("draft %s: %w", id, err)
	}
	return d, nil
}

// Drafts lists the drafts of this workspace's workflow, newest first
func (w *Workspace) Drafts(ctx context.Context, filter DraftFilter) ([]*Draft, error) {
	if filter.WorkflowID == "" {
		filter.WorkflowID = w.workflowID
	}
	return w.saver.List(ctx, filter)
}

// DeleteDraft removes a saved draft
func (w *Workspace) DeleteDraft(ctx context.Context, id string) error {
	return w.saver.Delete(ctx, id)
}

// Close stops every watcher and closes the draft store
func (w *Workspace) Close() error {
	w.mu.Lock()
	stops := w.stops
	w.stops = nil
	w.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	var err error
	if c, ok := w.saver.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}
