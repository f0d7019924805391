// Package csvout serializes assembled records as delimited rows. The
// layout matches the logger's own export: a Datum column, one column
// per field qualified by its unit, tab-separated by default.
package csvout

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/resol-de/vbus-sync/internal/assemble"
)

// TimestampFormat is the layout used for the Datum cell.
const TimestampFormat = "02.01.2006 15:04:05"

// DefaultDelimiter separates cells unless the caller chooses otherwise.
const DefaultDelimiter = '\t'

// Writer emits one tabular stream for one frozen schema. It only ever
// appends: once a row is written, no earlier output is touched.
type Writer struct {
	out    io.Writer
	schema *assemble.Schema
	delim  string
}

// NewWriter binds a writer to a sink and a frozen schema.
func NewWriter(out io.Writer, schema *assemble.Schema, delimiter rune) *Writer {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Writer{out: out, schema: schema, delim: string(delimiter)}
}

// WriteHeader emits the column row: Datum plus each label qualified by
// its unit.
func (w *Writer) WriteHeader() error {
	cells := make([]string, 0, len(w.schema.Columns)+1)
	cells = append(cells, "Datum")
	for _, col := range w.schema.Columns {
		unit := strings.TrimSpace(col.Unit)
		if unit != "" {
			cells = append(cells, fmt.Sprintf("%s [%s]", col.Label, unit))
		} else {
			cells = append(cells, col.Label)
		}
	}
	return w.writeRow(cells)
}

// WriteRecord emits one record row. Records must carry the writer's
// schema; a column count mismatch means schema freezing was violated
// and aborts the conversion.
func (w *Writer) WriteRecord(rec *assemble.Record) error {
	if len(rec.Values) != len(w.schema.Columns) {
		return fmt.Errorf("csvout: record carries %d values for %d columns", len(rec.Values), len(w.schema.Columns))
	}
	cells := make([]string, 0, len(rec.Values)+1)
	cells = append(cells, rec.Timestamp.Format(TimestampFormat))
	for i, v := range rec.Values {
		if v == nil {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, strconv.FormatFloat(v.Value, 'f', w.schema.Columns[i].Precision, 64))
	}
	return w.writeRow(cells)
}

func (w *Writer) writeRow(cells []string) error {
	if _, err := io.WriteString(w.out, strings.Join(cells, w.delim)+"\n"); err != nil {
		return fmt.Errorf("csvout: write: %w", err)
	}
	return nil
}
