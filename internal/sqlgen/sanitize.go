// Package sqlgen renders transformed analytics rows as SQL text. It contains
// the value sanitizer used for direct interpolation into VALUES lists and the
// batched statement writer.
//
// Design goals:
//
//   - Keep escaping minimal and explicit: single quotes are doubled, NUL
//     bytes are removed, nothing else is rewritten. The input is an analytics
//     export, not arbitrary attacker-controlled text; callers must not feed
//     untrusted data through this path.
//   - Emit deterministic output: the same value always renders to the same
//     literal, so generated scripts can be diffed between runs.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayout matches the destination schema's timestamp columns. Local
// time, no zone suffix, second precision.
const timestampLayout = "2006-01-02T15:04:05"

// Literal renders a scalar as an SQL literal suitable for a VALUES list.
//
//   - nil            -> NULL
//   - string         -> single-quoted, embedded quotes doubled, NULs removed
//   - integers       -> unquoted decimal
//   - floats         -> unquoted decimal
//   - bool           -> true / false
//   - time.Time      -> quoted local-time ISO timestamp
//   - anything else  -> stringified and single-quoted (e.g. uuid.UUID)
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return "'" + t.Format(timestampLayout) + "'"
	default:
		return "'" + fmt.Sprint(t) + "'"
	}
}

// quote single-quotes s for SQL, doubling embedded quotes and dropping NUL
// characters. This mirrors the destination importer's expectations; it is not
// a general SQL-injection defense.
func quote(s string) string {
	if strings.ContainsRune(s, 0) {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	if strings.ContainsRune(s, '\'') {
		s = strings.ReplaceAll(s, "'", "''")
	}
	return "'" + s + "'"
}

// Truncate caps s to at most n runes. Truncation happens before sanitization
// so the cap applies to the payload, not the rendered literal. The cut is a
// hard cap, not word-aware.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
