// Package mpcflow provides a minimal public façade for editing a workflow
// canvas and compiling it to an execution plan without importing internal
// packages. It re-exports the core types for convenience and exposes a
// Workspace that ties a canvas store, the compiler and a draft store
// together.
package mpcflow
