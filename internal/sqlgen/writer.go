// Batched INSERT emission. The writer buffers rendered rows per destination
// table and drains them as one multi-row statement per flush, either when the
// buffered row count reaches the configured threshold or at end of run.
//
// Ordering contract: rows within one statement preserve insertion order, and
// statements preserve arrival order per table. A row is always buffered whole
// before the threshold check, so no flush can split a row.

package sqlgen

import (
	"fmt"
	"io"
	"strings"
)

// Table names a destination table together with its fixed column order.
// Column order must match the value order of every appended row.
type Table struct {
	Name    string
	Columns []string
}

// DefaultBatchSize is the flush threshold used when the caller does not set
// one explicitly.
const DefaultBatchSize = 1000

// FlushFunc is invoked after every successful flush with the table name and
// the number of rows the statement carried. Used for progress logging and
// metrics; may be nil.
type FlushFunc func(table string, rows int)

// BatchWriter accumulates rendered rows per table and writes size-bounded
// multi-row INSERT statements to an output stream.
//
// The writer is not safe for concurrent use; the pipeline is single-threaded
// by design.
type BatchWriter struct {
	w         io.Writer
	threshold int
	onFlush   FlushFunc

	// order tracks tables by first appearance so the final drain is stable.
	order []string
	bufs  map[string]*tableBuffer
}

type tableBuffer struct {
	table Table
	rows  []string // rendered "(v1, v2, ...)" tuples
}

// NewBatchWriter constructs a BatchWriter flushing to w once a table's buffer
// reaches threshold rows. A non-positive threshold falls back to
// DefaultBatchSize.
func NewBatchWriter(w io.Writer, threshold int, onFlush FlushFunc) *BatchWriter {
	if threshold <= 0 {
		threshold = DefaultBatchSize
	}
	return &BatchWriter{
		w:         w,
		threshold: threshold,
		onFlush:   onFlush,
		bufs:      make(map[string]*tableBuffer, 2),
	}
}

// Append renders one row for t and buffers it. Values must align with
// t.Columns. The row is serialized immediately; the caller keeps no ownership
// of values after Append returns. When the buffer reaches the threshold the
// table is flushed before Append returns.
func (b *BatchWriter) Append(t Table, values []any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("sqlgen: table %s expects %d values, got %d", t.Name, len(t.Columns), len(values))
	}

	buf, ok := b.bufs[t.Name]
	if !ok {
		buf = &tableBuffer{table: t, rows: make([]string, 0, b.threshold)}
		b.bufs[t.Name] = buf
		b.order = append(b.order, t.Name)
	}

	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Literal(v))
	}
	sb.WriteByte(')')
	buf.rows = append(buf.rows, sb.String())

	if len(buf.rows) >= b.threshold {
		return b.flushTable(buf)
	}
	return nil
}

// Flush drains every nonempty buffer, one statement per table, in first-seen
// table order. Idempotent: flushing with empty buffers writes nothing.
func (b *BatchWriter) Flush() error {
	for _, name := range b.order {
		if err := b.flushTable(b.bufs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchWriter) flushTable(buf *tableBuffer) error {
	if len(buf.rows) == 0 {
		return nil
	}
	n := len(buf.rows)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(buf.table.Name)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(buf.table.Columns, ", "))
	sb.WriteString(") VALUES\n")
	for i, row := range buf.rows {
		sb.WriteString(row)
		if i < n-1 {
			sb.WriteString(",\n")
		}
	}
	sb.WriteString(";\n\n")

	// Keep capacity; row churn dominates allocation otherwise.
	buf.rows = buf.rows[:0]

	if _, err := io.WriteString(b.w, sb.String()); err != nil {
		return fmt.Errorf("sqlgen: write %s batch: %w", buf.table.Name, err)
	}
	if b.onFlush != nil {
		b.onFlush(buf.table.Name, n)
	}
	return nil
}
