// Package types defines shared Go types for evaluation telemetry: the item
// payload shipped to the collector, per-evaluator results, run handles, and
// terminal run statuses. These are the canonical in-memory representations
// and carry the JSON tags of the collector wire format directly.
package types
