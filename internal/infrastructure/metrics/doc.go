// Package metrics exposes expvar-published counters and gauges for the
// workflow compiler: compile outcomes, diagnostics, rejected connections
// and canvas size. Hosts read them through /debug/vars or render them in
// Prometheus text format with WritePrometheus.
package metrics
