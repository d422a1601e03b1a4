// Package flowline provides a small conditional workflow engine.
//
// flowline executes a directed graph of named stages over a shared,
// per-run state record. Each node wraps a Stage that reads and mutates
// the state; edges are either unconditional or conditional, where a
// Predicate inspects the updated state and picks the successor by
// label. A compiled Graph is immutable and safe to share across any
// number of concurrent runs.
//
// Core components include:
//   - Graph/Builder: the immutable description of stages and edges
//   - Stage: a single unit of work over the run state
//   - Predicate: a pure routing function from state to a label
//   - Executor: walks the graph from entry to End with a step budget,
//     an error-interception path, and a middleware chain
//
// The engine is generic over the state type, so the same executor can
// drive any request-processing pipeline with a fixed-shape state
// record. The support subpackage contains the canonical pipeline built
// on top of it.
package flowline
