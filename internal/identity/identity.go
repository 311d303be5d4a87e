// Package identity derives the identifiers used by the destination schema.
//
// Two modes exist:
//
//   - Deterministic: a stable 128-bit hash of a seed string, formatted as a
//     UUID. The same seed always yields the same identifier, across chunks
//     and across runs, which is what lets repeated appearances of one source
//     visit collapse onto a single session row.
//   - Random: a fresh identifier with no seed relationship, used for event
//     rows where nothing ever needs to re-derive the value.
//
// Session and visit identifiers are derived from the same source visit id but
// under different seed prefixes, so each visit resolves to two distinct,
// independently stable identifiers.
package identity

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Deterministic hashes seed with xxh3-128 and reinterprets the digest as a
// UUID. No version/variant bits are forced; the value is an opaque stable
// 128-bit identifier in standard textual form.
func Deterministic(seed string) uuid.UUID {
	h := xxh3.Hash128([]byte(seed))
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], h.Hi)
	binary.BigEndian.PutUint64(b[8:], h.Lo)
	return uuid.UUID(b)
}

// SessionID derives the session identifier for a source visit id.
func SessionID(visitID string) uuid.UUID {
	return Deterministic("session_" + visitID)
}

// VisitID derives the destination-schema visit identifier for a source visit
// id. Intentionally distinct from SessionID for the same input.
func VisitID(visitID string) uuid.UUID {
	return Deterministic("visit_" + visitID)
}

// NewEventID returns a fresh random identifier for one event row.
func NewEventID() uuid.UUID {
	return uuid.New()
}
