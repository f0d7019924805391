package vbus

import (
	"time"

	"github.com/resol-de/vbus-sync/internal/assemble"
	"github.com/resol-de/vbus-sync/internal/csvout"
	"github.com/resol-de/vbus-sync/internal/spec"
)

// DefaultInterval is the bus's idle packet cadence, used when the
// caller does not know the device's configured sampling interval.
const DefaultInterval = time.Second

// ConvertOptions configures one decode session.
type ConvertOptions struct {
	// Table overrides the built-in packet specification table.
	Table *spec.Table

	// StartTime anchors the timestamp of each pair's first sampling
	// cycle. The zero value means the Unix epoch.
	StartTime time.Time

	// Interval is the device's sampling interval. Zero means
	// DefaultInterval.
	Interval time.Duration

	// Delimiter separates output cells. Zero means tab.
	Delimiter rune

	// Boundary overrides sampling cycle detection. Nil means
	// assemble.DefaultBoundary.
	Boundary assemble.BoundaryFunc
}

func (o ConvertOptions) withDefaults() ConvertOptions {
	if o.Table == nil {
		o.Table = spec.Builtin()
	}
	if o.StartTime.IsZero() {
		o.StartTime = time.Unix(0, 0).UTC()
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.Delimiter == 0 {
		o.Delimiter = csvout.DefaultDelimiter
	}
	if o.Boundary == nil {
		o.Boundary = assemble.DefaultBoundary
	}
	return o
}
