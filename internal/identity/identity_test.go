package identity

import (
	"testing"

	"github.com/google/uuid"
)

// TestDeterministic_Stable verifies that the same seed always yields the same
// identifier and that distinct seeds diverge.
func TestDeterministic_Stable(t *testing.T) {
	t.Parallel()

	a := Deterministic("session_7")
	b := Deterministic("session_7")
	if a != b {
		t.Fatalf("same seed produced different identifiers: %s vs %s", a, b)
	}
	if c := Deterministic("session_8"); c == a {
		t.Fatalf("distinct seeds collided: %s", c)
	}
}

// TestDeterministic_CanonicalForm checks the textual form is a standard
// 36-character UUID that survives a parse round trip.
func TestDeterministic_CanonicalForm(t *testing.T) {
	t.Parallel()

	id := Deterministic("visit_12345")
	s := id.String()
	if len(s) != 36 {
		t.Fatalf("identifier %q is %d chars; want 36", s, len(s))
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if parsed != id {
		t.Fatalf("round trip changed identifier: %s -> %s", id, parsed)
	}
}

// TestSessionAndVisitIDsDiffer verifies the two derivations of one source
// visit id never coincide: the seed prefixes keep the namespaces apart.
func TestSessionAndVisitIDsDiffer(t *testing.T) {
	t.Parallel()

	for _, visitID := range []string{"7", "12345", ""} {
		s := SessionID(visitID)
		v := VisitID(visitID)
		if s == v {
			t.Fatalf("SessionID and VisitID coincide for visit %q: %s", visitID, s)
		}
		if s != SessionID(visitID) {
			t.Fatalf("SessionID(%q) not stable", visitID)
		}
		if v != VisitID(visitID) {
			t.Fatalf("VisitID(%q) not stable", visitID)
		}
	}
}

// TestNewEventID verifies event identifiers are fresh on every call.
func TestNewEventID(t *testing.T) {
	t.Parallel()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 64; i++ {
		id := NewEventID()
		if id == (uuid.UUID{}) {
			t.Fatal("NewEventID returned the zero identifier")
		}
		if seen[id] {
			t.Fatalf("NewEventID repeated %s", id)
		}
		seen[id] = true
	}
}
