package spec

import (
	"testing"

	"github.com/resol-de/vbus-sync/internal/frame"
)

func testTable() *Table {
	return NewTable(PacketSpec{
		Key:  Key{Source: 1, Destination: 2, Command: 0x0100},
		Name: "test packet",
		Fields: []FieldDescriptor{
			{Label: "speed", Offset: 0, Width: 2, Signed: false, Factor: 0.1, Precision: 1, Unit: "rpm"},
			{Label: "temp", Offset: 2, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "extra", Offset: 4, Width: 4, Signed: false, Factor: 1, Precision: 0, Unit: ""},
		},
	})
}

func TestResolve(t *testing.T) {
	f := &frame.Frame{Source: 1, Destination: 2, Command: 0x0100, Payload: []byte{100, 0, 0x06, 0xFF, 1, 0, 0, 0}}
	_, fields, ok := testTable().Resolve(f)
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Raw != 100 || fields[0].Value != 10.0 {
		t.Fatalf("speed mismatch: raw %d value %v", fields[0].Raw, fields[0].Value)
	}
	// 0xFF06 sign-extends to -250.
	if fields[1].Raw != -250 {
		t.Fatalf("temp not sign-extended: %d", fields[1].Raw)
	}
	if fields[1].Value != -25.0 {
		t.Fatalf("temp scale mismatch: %v", fields[1].Value)
	}
}

func TestResolveShortPayload(t *testing.T) {
	// Older firmware reports fewer fields; descriptors past the end
	// are skipped, not errors.
	f := &frame.Frame{Source: 1, Destination: 2, Command: 0x0100, Payload: []byte{100, 0, 0x06, 0xFF}}
	_, fields, ok := testTable().Resolve(f)
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
}

func TestResolveUnknownCommand(t *testing.T) {
	f := &frame.Frame{Source: 1, Destination: 2, Command: 0x0200, Payload: []byte{1, 2, 3, 4}}
	_, fields, ok := testTable().Resolve(f)
	if ok {
		t.Fatal("expected lookup miss")
	}
	if len(fields) != 0 {
		t.Fatalf("miss produced %d fields", len(fields))
	}
}

func TestRegisterReplaces(t *testing.T) {
	tbl := testTable()
	tbl.Register(PacketSpec{
		Key:    Key{Source: 1, Destination: 2, Command: 0x0100},
		Name:   "replacement",
		Fields: []FieldDescriptor{{Label: "only", Offset: 0, Width: 1, Factor: 1}},
	})
	ps, ok := tbl.Lookup(Key{Source: 1, Destination: 2, Command: 0x0100})
	if !ok || ps.Name != "replacement" {
		t.Fatalf("unexpected lookup result: %+v ok=%v", ps, ok)
	}
}

func TestExtractInt(t *testing.T) {
	cases := []struct {
		data   []byte
		signed bool
		want   int64
	}{
		{[]byte{0xFF}, false, 255},
		{[]byte{0xFF}, true, -1},
		{[]byte{0x00, 0x80}, true, -32768},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFF}, true, -1},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFF}, false, 4294967295},
		{[]byte{0x78, 0x56, 0x34, 0x12}, false, 0x12345678},
	}
	for _, tc := range cases {
		if got := extractInt(tc.data, tc.signed); got != tc.want {
			t.Fatalf("extractInt(%X, %v) = %d, want %d", tc.data, tc.signed, got, tc.want)
		}
	}
}
