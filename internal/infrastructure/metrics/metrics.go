package metrics

import (
	"expvar"
)

// Compiler metrics keyed by outcome and diagnostic code.
var (
	compilesTotal    = expvar.NewMap("mpcflow_compiles_total")
	diagnosticsTotal = expvar.NewMap("mpcflow_diagnostics_total")
	rejectionsTotal  = expvar.NewMap("mpcflow_connections_rejected_total")
)

// Plan / canvas metrics.
var (
	tasksCompiledTotal = new(expvar.Int)
	canvasNodes        = new(expvar.Int)
	canvasEdges        = new(expvar.Int)
	draftsSavedTotal   = new(expvar.Int)
)

// Compile outcomes
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeEmpty  = "empty"
)

func init() {
	expvar.Publish("mpcflow_tasks_compiled_total", tasksCompiledTotal)
	expvar.Publish("mpcflow_canvas_nodes", canvasNodes)
	expvar.Publish("mpcflow_canvas_edges", canvasEdges)
	expvar.Publish("mpcflow_drafts_saved_total", draftsSavedTotal)
}

// Compiler helpers
func IncCompiles(outcome string) { compilesTotal.Add(outcome, 1) }
func IncDiagnostic(code string) { diagnosticsTotal.Add(code, 1) }
func AddTasksCompiled(n int) { tasksCompiledTotal.Add(int64(n)) }

// Canvas helpers
func IncConnectionRejected(reason string) { rejectionsTotal.Add(reason, 1) }
func SetCanvasSize(nodes, edges int) {
	canvasNodes.Set(int64(nodes))
	canvasEdges.Set(int64(edges))
}

// Draft helpers
func IncDraftsSaved() { draftsSavedTotal.Add(1) }

// Count returns the current value of key in one of the keyed maps. It is
// meant for tests and diagnostics output.
func Count(name, key string) int64 {
	m, ok := expvar.Get(name).(*expvar.Map)
	if !ok {
		return 0
	}
	v, ok := m.Get(key).(*expvar.Int)
	if !ok {
		return 0
	}
	return v.Value()
}
