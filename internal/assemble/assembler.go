package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/resol-de/vbus-sync/internal/frame"
	"github.com/resol-de/vbus-sync/internal/spec"
)

// Pair identifies the device pair a record belongs to.
type Pair struct {
	Source      uint16
	Destination uint16
}

func (p Pair) String() string {
	return fmt.Sprintf("%04X_%04X", p.Source, p.Destination)
}

// Column is one output column of a frozen schema.
type Column struct {
	Label     string
	Unit      string
	Precision int
}

// Schema is the frozen, ordered column set for one device pair within
// one recording. Once frozen it never changes, so rows stay
// positionally stable.
type Schema struct {
	Pair    Pair
	Columns []Column
}

// UnknownFrame preserves the raw payload of a command the
// specification table does not know.
type UnknownFrame struct {
	Command uint16
	Payload []byte
}

// Record is one assembled sampling cycle. Values is aligned with the
// schema's columns; a nil entry means the field was absent in this
// cycle.
type Record struct {
	Timestamp time.Time
	Pair      Pair
	Schema    *Schema
	Values    []*spec.ResolvedField
	Unknown   []UnknownFrame
}

// Field returns the value for a column label, if present in this cycle.
func (r *Record) Field(label string) (spec.ResolvedField, bool) {
	for i, col := range r.Schema.Columns {
		if col.Label == label && r.Values[i] != nil {
			return *r.Values[i], true
		}
	}
	return spec.ResolvedField{}, false
}

// BoundaryFunc reports whether observing next for a pair whose current
// cycle already saw the given commands starts a new sampling cycle.
type BoundaryFunc func(pair Pair, seen []uint16, next uint16) bool

// DefaultBoundary starts a new cycle when a command repeats within the
// current one, which is how the periodic command carousel behaves.
func DefaultBoundary(_ Pair, seen []uint16, next uint16) bool {
	for _, c := range seen {
		if c == next {
			return true
		}
	}
	return false
}

// Assembler groups resolved frames into per-pair records. Each device
// pair moves through a discovery phase, where its first full cycle
// fixes the column order, into a frozen phase where every record
// supplies values in exactly that order.
type Assembler struct {
	start    time.Time
	interval time.Duration
	boundary BoundaryFunc
	pairs    map[Pair]*pairState

	// DroppedFields counts values whose label only appeared after the
	// pair's schema froze.
	DroppedFields int
}

type pairState struct {
	frozen  bool
	schema  *Schema
	cycle   int
	seen    []uint16
	order   []Column
	values  map[string]spec.ResolvedField
	unknown []UnknownFrame
}

// New returns an assembler anchoring cycle timestamps at start with
// the given sampling interval.
func New(start time.Time, interval time.Duration, boundary BoundaryFunc) *Assembler {
	if boundary == nil {
		boundary = DefaultBoundary
	}
	return &Assembler{
		start:    start,
		interval: interval,
		boundary: boundary,
		pairs:    make(map[Pair]*pairState),
	}
}

// Add feeds one resolved frame. When the frame starts a new sampling
// cycle the previous cycle's record is returned, otherwise nil. The
// known flag marks whether the specification table recognized the
// frame's command.
func (a *Assembler) Add(f *frame.Frame, fields []spec.ResolvedField, known bool) *Record {
	pair := Pair{Source: f.Source, Destination: f.Destination}
	st := a.pairs[pair]
	if st == nil {
		st = &pairState{values: make(map[string]spec.ResolvedField)}
		a.pairs[pair] = st
	}
	var rec *Record
	if a.boundary(pair, st.seen, f.Command) {
		rec = a.finishCycle(pair, st)
	}
	st.seen = append(st.seen, f.Command)
	if !known {
		st.unknown = append(st.unknown, UnknownFrame{Command: f.Command, Payload: f.Payload})
	}
	for _, rf := range fields {
		if _, dup := st.values[rf.Label]; !dup && !st.frozen {
			st.order = append(st.order, Column{Label: rf.Label, Unit: rf.Unit, Precision: rf.Precision})
		}
		st.values[rf.Label] = rf
	}
	return rec
}

// Flush completes every pending cycle, ordered by device pair so the
// output is deterministic.
func (a *Assembler) Flush() []*Record {
	pairs := make([]Pair, 0, len(a.pairs))
	for pair := range a.pairs {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source != pairs[j].Source {
			return pairs[i].Source < pairs[j].Source
		}
		return pairs[i].Destination < pairs[j].Destination
	})
	records := make([]*Record, 0, len(pairs))
	for _, pair := range pairs {
		if rec := a.finishCycle(pair, a.pairs[pair]); rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

func (a *Assembler) finishCycle(pair Pair, st *pairState) *Record {
	if len(st.seen) == 0 {
		return nil
	}
	if !st.frozen {
		st.schema = &Schema{Pair: pair, Columns: st.order}
		st.frozen = true
	}
	rec := &Record{
		Timestamp: a.start.Add(time.Duration(st.cycle) * a.interval),
		Pair:      pair,
		Schema:    st.schema,
		Values:    make([]*spec.ResolvedField, len(st.schema.Columns)),
		Unknown:   st.unknown,
	}
	for i, col := range st.schema.Columns {
		if v, ok := st.values[col.Label]; ok {
			v := v
			rec.Values[i] = &v
			delete(st.values, col.Label)
		}
	}
	// Anything left over carries a label the frozen schema never saw.
	a.DroppedFields += len(st.values)
	st.cycle++
	st.seen = st.seen[:0]
	st.unknown = nil
	for label := range st.values {
		delete(st.values, label)
	}
	return rec
}
