package spec

import "sync"

// Key identifies a packet layout by its addressing triple.
type Key struct {
	Source      uint16
	Destination uint16
	Command     uint16
}

// FieldDescriptor describes one value inside a packet payload. Values
// are little-endian integers of one to four bytes, optionally signed,
// scaled by Factor. Precision is the number of decimal digits needed
// to render Factor's smallest step without loss.
type FieldDescriptor struct {
	Label     string
	Offset    int
	Width     int
	Signed    bool
	Factor    float64
	Precision int
	Unit      string
}

// PacketSpec binds an ordered field layout to its addressing triple.
type PacketSpec struct {
	Key    Key
	Name   string
	Fields []FieldDescriptor
}

// Table resolves addressing triples to packet layouts. A table is
// passed into each decode session explicitly; tests substitute their
// own.
type Table struct {
	mu      sync.RWMutex
	packets map[Key]PacketSpec
}

// NewTable builds a table from the given packet specs.
func NewTable(specs ...PacketSpec) *Table {
	t := &Table{}
	for _, ps := range specs {
		t.Register(ps)
	}
	return t
}

// Register stores a packet spec, replacing any previous entry for the
// same triple.
func (t *Table) Register(ps PacketSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.packets == nil {
		t.packets = make(map[Key]PacketSpec)
	}
	t.packets[ps.Key] = ps
}

// Lookup returns the packet spec for the triple.
func (t *Table) Lookup(k Key) (PacketSpec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ps, ok := t.packets[k]
	return ps, ok
}

var builtin = &Table{}

// Register adds a packet spec to the built-in table. Device packages
// call it from init().
func Register(ps PacketSpec) {
	builtin.Register(ps)
}

// Builtin returns the table assembled from registered device packages.
func Builtin() *Table {
	return builtin
}
