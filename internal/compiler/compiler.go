// Package compiler turns a workflow canvas into an execution plan: it
// schedules task nodes, assembles one plan task per node and reports every
// structural problem it finds in a single pass.
package compiler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/plan"
	"github.com/flowgraph/mpcflow/internal/infrastructure/metrics"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

// JobOptions are the job-level fields stamped on every plan
type JobOptions struct {
	Name                string `json:"name" yaml:"name"`
	Description         string `json:"description" yaml:"description"`
	Status              int    `json:"status" yaml:"status"`
	ServiceType         int    `json:"serviceType" yaml:"serviceType"`
	ModelType           int    `json:"modelType" yaml:"modelType"`
	CreateParticipantID string `json:"createParticipantId" yaml:"createParticipantId"`
	TLSEnable           bool   `json:"tlsEnable" yaml:"tlsEnable"`
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the compiler logger
func WithLogger(l logr.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// WithEntityDirectory resolves participant names through d before the
// names found on the canvas
func WithEntityDirectory(d EntityDirectory) Option {
	return func(c *Compiler) { c.dir = d }
}

// WithClock replaces the clock used for job IDs
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithJobIDs replaces the job ID generator
func WithJobIDs(fn func() string) Option {
	return func(c *Compiler) { c.jobID = fn }
}

// WithJobOptions sets the job-level plan fields
func WithJobOptions(job JobOptions) Option {
	return func(c *Compiler) { c.job = job }
}

// Compiler compiles canvases into execution plans
// PRINCIPLES:
// - Pure: a plan depends only on the snapshot, apart from the job ID
// - Collect, don't throw: every structural problem is reported at once
// - Stateless between calls: safe for concurrent use
type Compiler struct {
	log   logr.Logger
	dir   EntityDirectory
	now   func() time.Time
	jobID func() string
	job   JobOptions
}

// New creates a compiler
func New(opts ...Option) *Compiler {
	c := &Compiler{
		log: logr.Discard(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jobID == nil {
		c.jobID = c.defaultJobID
	}
	return c
}

// Result is the outcome of a compilation. Plan is nil when compilation
// failed; Warnings are reported either way.
type Result struct {
	Plan     *plan.ExportJSON `json:"plan,omitempty"`
	Warnings []Diagnostic     `json:"warnings"`
}

// Compile compiles a copy of the given nodes and edges
func (c *Compiler) Compile(nodes []*graph.Node, edges []*graph.Edge) (*Result, error) {
	return c.CompileSnapshot(graph.NewSnapshot(nodes, edges))
}

// CompileSnapshot compiles a canvas snapshot. A canvas without tasks
// compiles to a plan with an empty task list. On structural problems the
// error is Diagnostics and the result carries only warnings.
func (c *Compiler) CompileSnapshot(snap *graph.Snapshot) (*Result, error) {
	var diag validation.Result

	if err := validation.ValidateGraph(snap.Nodes(), snap.Edges()); err != nil {
		diag.Errorf(validation.CodeInvalidGraph, fmt.Errorf("%w: %w", validation.ErrInvalidGraph, err), "", "%v", err)
		return c.fail(diag)
	}

	names := entityNames{c.dir, canvasDirectory(snap)}
	tasks := snap.Tasks()
	if len(tasks) == 0 {
		metrics.IncCompiles(metrics.OutcomeEmpty)
		c.log.Info("canvas has no tasks, compiled empty plan")
		return &Result{Plan: c.newPlan(snap, names, []plan.Task{}), Warnings: []Diagnostic{}}, nil
	}

	order, err := TopologicalSort(snap)
	if err != nil {
		var cycle *CycleError
		nodeID := ""
		if errors.As(err, &cycle) && len(cycle.Tasks) > 0 {
			nodeID = cycle.Tasks[0]
		}
		diag.Errorf(validation.CodeCyclicDependency, err, nodeID, "%v", err)
	}

	asm := &assembler{snap: snap, names: names, job: c.job}
	taskList := make([]plan.Task, 0, len(order))
	for _, id := range order {
		n, _ := snap.Node(id)
		task, res := asm.buildTask(n)
		c.log.V(1).Info("task assembled", "task", id, "computeType", task.ComputeType, "errors", len(res.Errors), "warnings", len(res.Warnings))
		diag.Merge(res)
		taskList = append(taskList, task)
	}

	if !diag.Valid() {
		return c.fail(diag)
	}

	p := c.newPlan(snap, names, taskList)
	c.record(diag)
	metrics.IncCompiles(metrics.OutcomeOK)
	metrics.AddTasksCompiled(len(taskList))
	c.log.Info("plan compiled", "jobId", p.JobID, "tasks", len(taskList), "warnings", len(diag.Warnings))

	warnings := diag.Warnings
	if warnings == nil {
		warnings = []Diagnostic{}
	}
	return &Result{Plan: p, Warnings: warnings}, nil
}

func (c *Compiler) fail(diag validation.Result) (*Result, error) {
	c.record(diag)
	metrics.IncCompiles(metrics.OutcomeFailed)
	err := diag.Err()
	c.log.Error(err, "compile failed", "errors", len(diag.Errors))
	return &Result{Warnings: diag.Warnings}, err
}

func (c *Compiler) record(diag validation.Result) {
	for _, d := range diag.Errors {
		metrics.IncDiagnostic(string(d.Code))
	}
	for _, d := range diag.Warnings {
		metrics.IncDiagnostic(string(d.Code))
	}
}

func (c *Compiler) newPlan(snap *graph.Snapshot, names entityNames, tasks []plan.Task) *plan.ExportJSON {
	participants := collectParticipants(snap.Nodes(), names)
	creator := c.job.CreateParticipantID
	if creator == "" && len(participants) > 0 {
		creator = participants[0].ParticipantID
	}
	return &plan.ExportJSON{
		JobID:               c.jobID(),
		Name:                c.job.Name,
		Description:         c.job.Description,
		Status:              c.job.Status,
		ServiceType:         c.job.ServiceType,
		CreateParticipantID: creator,
		ModelType:           c.job.ModelType,
		TLSEnable:           c.job.TLSEnable,
		AssetDetailList:     assetDetails(snap, names),
		ParticipantList:     participants,
		TaskList:            tasks,
	}
}

// defaultJobID returns job_<unix millis>_<7 random characters>
func (c *Compiler) defaultJobID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("job_%d_%s", c.now().UnixMilli(), suffix)
}
