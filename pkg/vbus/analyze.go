package vbus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/resol-de/vbus-sync/internal/frame"
	"github.com/resol-de/vbus-sync/internal/spec"
)

// Result captures a single-frame decode for diagnostics.
type Result struct {
	Frame  *frame.Frame
	Packet string // specification name, empty when unrecognized
	Fields []spec.ResolvedField
}

// String renders a human-readable representation of the result.
func (r Result) String() string {
	summary := map[string]any{
		"source":      fmt.Sprintf("0x%04X", r.Frame.Source),
		"destination": fmt.Sprintf("0x%04X", r.Frame.Destination),
		"version":     fmt.Sprintf("0x%02X", r.Frame.Version),
		"command":     fmt.Sprintf("0x%04X", r.Frame.Command),
		"payload_hex": strings.ToUpper(hex.EncodeToString(r.Frame.Payload)),
	}
	if r.Packet != "" {
		summary["packet"] = r.Packet
	}
	if len(r.Fields) > 0 {
		fields := make(map[string]any, len(r.Fields))
		for _, f := range r.Fields {
			fields[f.Label] = f.Value
		}
		summary["fields"] = fields
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Sprintf("source:0x%04X command:0x%04X (marshal error: %v)", r.Frame.Source, r.Frame.Command, err)
	}
	return string(data)
}

// DecodeHex parses a single frame from a hex string and resolves its
// fields. A nil table means the built-in one.
func DecodeHex(raw string, table *spec.Table) (Result, error) {
	if table == nil {
		table = spec.Builtin()
	}
	data, err := decodeHex(raw)
	if err != nil {
		return Result{}, err
	}
	f, err := frame.Parse(data)
	if err != nil {
		return Result{}, err
	}
	result := Result{Frame: f}
	if ps, fields, ok := table.Resolve(f); ok {
		result.Packet = ps.Name
		result.Fields = fields
	}
	return result, nil
}

func decodeHex(input string) ([]byte, error) {
	clean := stripWhitespace(strings.ToUpper(input))
	if strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex frame must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripWhitespace(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
