package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LocalRunPrefix marks run handles synthesized locally when the collector
// could not be reached at run start. The collector never issues identifiers
// with this prefix.
const LocalRunPrefix = "local-"

// RunHandle identifies a logical evaluation run on the collector. It is
// either the collector-assigned identifier or a locally synthesized token
// carrying LocalRunPrefix. Handles are opaque and compared by value.
type RunHandle string

// IsLocal reports whether the handle was synthesized locally rather than
// assigned by the collector.
func (h RunHandle) IsLocal() bool {
	return len(h) >= len(LocalRunPrefix) && string(h[:len(LocalRunPrefix)]) == LocalRunPrefix
}

// NewLocalHandle synthesizes a run handle for use when the collector is
// unreachable. UUIDv7 keeps handles time-ordered; if UUID generation fails
// the handle falls back to a plain nanosecond timestamp.
func NewLocalHandle() RunHandle {
	id, err := uuid.NewV7()
	if err != nil {
		return RunHandle(fmt.Sprintf("%s%d", LocalRunPrefix, time.Now().UnixNano()))
	}
	return RunHandle(LocalRunPrefix + id.String())
}

// RunStatus is the terminal (or initial) state of a run on the collector.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSuccess   RunStatus = "SUCCESS"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// EvalResult is one named evaluation outcome for an item.
type EvalResult struct {
	// Name identifies the evaluator that produced this result.
	Name string `json:"name"`

	// Score is the evaluator's numeric output.
	Score float64 `json:"score"`

	// Threshold is the pass/fail cutoff applied to Score, if the evaluator
	// has one. Omitted from the wire payload when absent.
	Threshold *float64 `json:"threshold,omitempty"`

	// Success records whether the evaluator considered the item passing.
	Success bool `json:"success"`

	// Reason is optional free text explaining the outcome.
	Reason string `json:"reason,omitempty"`

	// Metadata carries arbitrary evaluator-specific detail.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TelemetryItem is the immutable record of one evaluated example. It is
// produced once by the evaluation loop and must not be mutated after being
// handed to a reporter.
type TelemetryItem struct {
	Inputs          map[string]any `json:"inputs"`
	ExpectedOutputs map[string]any `json:"expectedOutputs"`
	ActualOutputs   map[string]any `json:"actualOutputs"`
	EvalResults     []EvalResult   `json:"evalResults"`

	// Success is the overall pass/fail verdict across all evaluators.
	Success bool `json:"success"`
}
