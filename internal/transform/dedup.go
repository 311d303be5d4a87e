package transform

import (
	"github.com/google/uuid"

	"matomo2umami/internal/identity"
)

// Tracker maps source visit ids to derived session ids for the duration of
// one run. It exists so that N appearances of the same visit across any
// number of date chunks yield exactly one session row, with every event row
// referencing the same identifier.
//
// The tracker is owned by the orchestrator and never shared across runs or
// goroutines; the pipeline is single-threaded.
type Tracker struct {
	sessions map[string]uuid.UUID
}

// NewTracker returns an empty run-scoped tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]uuid.UUID)}
}

// Ensure returns the session identifier for a source visit id. The second
// return value is true when this is the first appearance in the run, which is
// the caller's signal to enqueue the session row.
func (t *Tracker) Ensure(visitID string) (uuid.UUID, bool) {
	if id, ok := t.sessions[visitID]; ok {
		return id, false
	}
	id := identity.SessionID(visitID)
	t.sessions[visitID] = id
	return id, true
}

// Len reports the number of distinct sessions seen so far.
func (t *Tracker) Len() int {
	return len(t.sessions)
}
