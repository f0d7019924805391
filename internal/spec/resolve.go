package spec

import "github.com/resol-de/vbus-sync/internal/frame"

// ResolvedField carries one extracted and scaled payload value.
type ResolvedField struct {
	Label     string
	Raw       int64
	Value     float64
	Unit      string
	Precision int
}

// Resolve looks the frame's addressing triple up and extracts every
// descriptor that fits inside the payload. Descriptors past the
// payload end are skipped: older firmware reports fewer fields than
// the specification anticipates. The boolean reports whether the
// triple was found at all.
func (t *Table) Resolve(f *frame.Frame) (PacketSpec, []ResolvedField, bool) {
	ps, ok := t.Lookup(Key{Source: f.Source, Destination: f.Destination, Command: f.Command})
	if !ok {
		return PacketSpec{}, nil, false
	}
	fields := make([]ResolvedField, 0, len(ps.Fields))
	for _, fd := range ps.Fields {
		if fd.Offset < 0 || fd.Offset+fd.Width > len(f.Payload) {
			continue
		}
		raw := extractInt(f.Payload[fd.Offset:fd.Offset+fd.Width], fd.Signed)
		fields = append(fields, ResolvedField{
			Label:     fd.Label,
			Raw:       raw,
			Value:     float64(raw) * fd.Factor,
			Unit:      fd.Unit,
			Precision: fd.Precision,
		})
	}
	return ps, fields, true
}

// extractInt reads a little-endian integer of up to eight bytes,
// sign-extending when requested.
func extractInt(b []byte, signed bool) int64 {
	var v uint64
	for i, by := range b {
		v |= uint64(by) << (8 * uint(i))
	}
	if signed && len(b) < 8 {
		shift := uint(64 - 8*len(b))
		return int64(v<<shift) >> shift
	}
	return int64(v)
}
