package sqlgen

import (
	"errors"
	"strings"
	"testing"
)

var testTable = Table{Name: "t", Columns: []string{"a"}}

// statements splits the writer's output into individual INSERT statements.
func statements(out string) []string {
	var stmts []string
	for _, s := range strings.Split(out, ";\n\n") {
		if strings.TrimSpace(s) != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// rowCount counts value tuples in one statement.
func rowCount(stmt string) int {
	// One leading paren belongs to the column list.
	return strings.Count(stmt, "(") - 1
}

// TestBatchWriter_ThresholdFlush verifies the core batching contract: with a
// threshold of 2, five rows for one table produce exactly three statements
// carrying (2, 2, 1) rows in original input order.
func TestBatchWriter_ThresholdFlush(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	var flushes []int
	w := NewBatchWriter(&sb, 2, func(table string, rows int) {
		flushes = append(flushes, rows)
	})

	for _, v := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if err := w.Append(testTable, []any{v}); err != nil {
			t.Fatalf("Append(%q): %v", v, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stmts := statements(sb.String())
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d:\n%s", len(stmts), sb.String())
	}
	wantRows := []int{2, 2, 1}
	for i, stmt := range stmts {
		if got := rowCount(stmt); got != wantRows[i] {
			t.Fatalf("statement %d carries %d rows; want %d:\n%s", i, got, wantRows[i], stmt)
		}
	}
	if len(flushes) != 3 || flushes[0] != 2 || flushes[1] != 2 || flushes[2] != 1 {
		t.Fatalf("onFlush row counts = %v; want [2 2 1]", flushes)
	}
	// Input order must survive across statement boundaries.
	joined := sb.String()
	last := -1
	for _, v := range []string{"'r1'", "'r2'", "'r3'", "'r4'", "'r5'"} {
		idx := strings.Index(joined, v)
		if idx < 0 {
			t.Fatalf("row %s missing from output", v)
		}
		if idx < last {
			t.Fatalf("row %s out of order", v)
		}
		last = idx
	}
}

// TestBatchWriter_StatementShape checks the emitted SQL syntax: table name,
// fixed column list, and comma-separated tuples terminated by a semicolon.
func TestBatchWriter_StatementShape(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	tbl := Table{Name: "session", Columns: []string{"session_id", "browser"}}
	w := NewBatchWriter(&sb, 10, nil)

	if err := w.Append(tbl, []any{"s1", "chrome"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(tbl, []any{"s2", nil}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := "INSERT INTO session (session_id, browser) VALUES\n('s1', 'chrome'),\n('s2', NULL);\n\n"
	if sb.String() != want {
		t.Fatalf("output mismatch:\n got: %q\nwant: %q", sb.String(), want)
	}
}

// TestBatchWriter_ColumnMismatch verifies that a row whose arity does not
// match the table's column order is rejected before buffering.
func TestBatchWriter_ColumnMismatch(t *testing.T) {
	t.Parallel()

	w := NewBatchWriter(&strings.Builder{}, 2, nil)
	err := w.Append(Table{Name: "t", Columns: []string{"a", "b"}}, []any{"only-one"})
	if err == nil {
		t.Fatal("expected an arity error, got nil")
	}
}

// TestBatchWriter_FlushIdempotent verifies that draining an already-empty
// writer emits nothing.
func TestBatchWriter_FlushIdempotent(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	w := NewBatchWriter(&sb, 2, nil)
	if err := w.Append(testTable, []any{"r1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	before := sb.String()
	if err := w.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sb.String() != before {
		t.Fatalf("second Flush wrote output: %q", sb.String()[len(before):])
	}
}

// TestBatchWriter_TablesFlushIndependently verifies that per-table buffers do
// not interfere: filling one table's buffer must not flush another's, and the
// final drain preserves first-seen table order.
func TestBatchWriter_TablesFlushIndependently(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	a := Table{Name: "alpha", Columns: []string{"v"}}
	b := Table{Name: "beta", Columns: []string{"v"}}
	w := NewBatchWriter(&sb, 2, nil)

	if err := w.Append(a, []any{"a1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(b, []any{"b1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(b, []any{"b2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// beta hit the threshold; alpha must still be buffered.
	if strings.Contains(sb.String(), "alpha") {
		t.Fatalf("alpha flushed early:\n%s", sb.String())
	}
	if !strings.Contains(sb.String(), "INSERT INTO beta") {
		t.Fatalf("beta not flushed at threshold:\n%s", sb.String())
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !strings.Contains(sb.String(), "INSERT INTO alpha") {
		t.Fatalf("alpha missing after final drain:\n%s", sb.String())
	}
}

// errWriter fails every write; used to verify that output failures surface.
type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestBatchWriter_WriteErrorSurfaces verifies that a failing output stream
// turns into an error from Append/Flush rather than being swallowed.
func TestBatchWriter_WriteErrorSurfaces(t *testing.T) {
	t.Parallel()

	w := NewBatchWriter(errWriter{}, 1, nil)
	if err := w.Append(testTable, []any{"r1"}); err == nil {
		t.Fatal("expected write error, got nil")
	}
}
