// Package monitor renders the policy dashboard: an interactive TUI plus
// plain-text and JSON representations for piped output.
package monitor

import (
	"context"

	"github.com/ppiankov/policydeck/internal/policy"
)

// Fetcher retrieves the current policy collection.
type Fetcher interface {
	Fetch(ctx context.Context) (policy.Snapshot, error)
}

// Phase is the dashboard's load state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

// ViewState is the dashboard's explicit state value: one collection, one
// phase, one error message. Every transition goes through Apply* methods
// so there is no ambient mutable state to drift.
type ViewState struct {
	Phase    Phase
	Snapshot policy.Snapshot
	Err      string
}

// ApplyLoading marks a refresh in flight. The previous collection stays
// visible until the response lands.
func (v *ViewState) ApplyLoading() {
	v.Phase = PhaseLoading
}

// ApplyResult folds a completed fetch into the state. On failure the
// collection is cleared: a failed read never leaves stale rows behind.
func (v *ViewState) ApplyResult(snap policy.Snapshot, err error) {
	if err != nil {
		v.Phase = PhaseFailed
		v.Snapshot = policy.Snapshot{At: snap.At}
		v.Err = err.Error()
		return
	}
	v.Phase = PhaseReady
	v.Snapshot = snap
	v.Err = ""
}
