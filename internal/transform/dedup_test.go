package transform

import (
	"testing"

	"matomo2umami/internal/identity"
)

// TestTrackerEnsure verifies first-appearance signaling: the first Ensure for
// a visit id reports created=true, every later one reports false with the
// identical identifier.
func TestTrackerEnsure(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	id1, created := tr.Ensure("7")
	if !created {
		t.Fatal("first Ensure did not report created")
	}
	if want := identity.SessionID("7"); id1 != want {
		t.Fatalf("Ensure(7) = %s; want %s", id1, want)
	}

	id2, created := tr.Ensure("7")
	if created {
		t.Fatal("second Ensure reported created")
	}
	if id2 != id1 {
		t.Fatalf("repeat Ensure changed identifier: %s vs %s", id2, id1)
	}

	id3, created := tr.Ensure("8")
	if !created {
		t.Fatal("new visit id did not report created")
	}
	if id3 == id1 {
		t.Fatalf("distinct visit ids mapped to one session: %s", id3)
	}

	if got := tr.Len(); got != 2 {
		t.Fatalf("Len() = %d; want 2", got)
	}
}
