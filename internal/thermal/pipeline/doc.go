// Package pipeline processes one thermal clip end to end.
//
// It wires the layer packages (L2 frames through L6 objects) to the
// optional sinks: identification, SQLite persistence, Prometheus metrics,
// preview rendering and the debug collector. The pipeline owns no domain
// logic; every step delegates to a layer package or an adapter.
package pipeline
