// Package vbus converts raw VBus recordings into delimited tabular
// output. One Convert call is one decode session over one complete
// recording; sessions share nothing but the read-only specification
// table, so independent recordings may be converted in parallel.
package vbus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/resol-de/vbus-sync/internal/assemble"
	"github.com/resol-de/vbus-sync/internal/csvout"
	_ "github.com/resol-de/vbus-sync/internal/device/deltasol"   // register packet specs
	_ "github.com/resol-de/vbus-sync/internal/device/deltatherm" // register packet specs
	"github.com/resol-de/vbus-sync/internal/frame"
	"github.com/resol-de/vbus-sync/internal/stream"
)

// Pair re-exports the device pair key so callers can name outputs.
type Pair = assemble.Pair

// Schema re-exports the frozen column set handed to sink openers.
type Schema = assemble.Schema

// SinkFunc opens the output destination for one device pair. It is
// called lazily, when the pair's first record is ready, so an empty
// conversion never opens a sink. The writer is closed when the session
// ends.
type SinkFunc func(pair Pair, schema *Schema) (io.WriteCloser, error)

// SingleSink routes every device pair to one writer. The writer is
// not closed; the caller owns it.
func SingleSink(w io.Writer) SinkFunc {
	return func(Pair, *Schema) (io.WriteCloser, error) {
		return nopCloser{w}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Summary reports the outcome of one conversion. It is populated even
// when parts of the recording were corrupt.
type Summary struct {
	FramesSeen         int  `json:"frames_seen"`
	FramesRejected     int  `json:"frames_rejected"`
	FramesUnrecognized int  `json:"frames_unrecognized"`
	Records            int  `json:"records"`
	FieldsDropped      int  `json:"fields_dropped"`
	SkippedBytes       int  `json:"skipped_bytes"`
	Truncated          bool `json:"truncated"`
}

// String renders the summary as indented JSON.
func (s Summary) String() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Sprintf("frames:%d rejected:%d (marshal error: %v)", s.FramesSeen, s.FramesRejected, err)
	}
	return string(data)
}

// Convert decodes one complete recording and writes tabular output
// through the sink opener. Corrupt frames are counted and skipped; a
// truncated tail ends the session with the Truncated flag set. Only a
// sink failure or a cancelled context aborts the conversion.
func Convert(ctx context.Context, data []byte, open SinkFunc, opts ConvertOptions) (Summary, error) {
	opts = opts.withDefaults()

	var sum Summary
	scanner := frame.NewScanner(stream.New(data))
	asm := assemble.New(opts.StartTime, opts.Interval, opts.Boundary)

	writers := make(map[Pair]*csvout.Writer)
	var sinks []io.Closer
	defer func() {
		for _, c := range sinks {
			c.Close()
		}
	}()

	emit := func(rec *assemble.Record) error {
		w := writers[rec.Pair]
		if w == nil {
			sink, err := open(rec.Pair, rec.Schema)
			if err != nil {
				return fmt.Errorf("open sink for %s: %w", rec.Pair, err)
			}
			sinks = append(sinks, sink)
			w = csvout.NewWriter(sink, rec.Schema, opts.Delimiter)
			writers[rec.Pair] = w
			if err := w.WriteHeader(); err != nil {
				return err
			}
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
		sum.Records++
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(sum, scanner, asm), err
		}
		rejectedBefore := scanner.Rejected()
		f, err := scanner.Next()
		if n := scanner.Rejected() - rejectedBefore; n > 0 {
			logrus.WithField("candidates", n).Debug("rejected sync candidates")
		}
		if err != nil {
			// Only truncation escapes the scanner; everything else is
			// consumed by resynchronization.
			sum.Truncated = true
			logrus.WithField("offset", len(data)).Debug("recording ends mid-frame")
			break
		}
		if f == nil {
			break
		}
		sum.FramesSeen++
		if f.Version != frame.VersionPacket {
			// Parameter traffic carries no sampled data.
			sum.FramesUnrecognized++
			continue
		}
		ps, fields, known := opts.Table.Resolve(f)
		if !known {
			sum.FramesUnrecognized++
			logrus.WithFields(logrus.Fields{
				"source":      fmt.Sprintf("0x%04X", f.Source),
				"destination": fmt.Sprintf("0x%04X", f.Destination),
				"command":     fmt.Sprintf("0x%04X", f.Command),
				"offset":      f.Offset,
			}).Debug("unrecognized command")
		} else {
			logrus.WithFields(logrus.Fields{
				"packet": ps.Name,
				"fields": len(fields),
			}).Trace("resolved packet")
		}
		if rec := asm.Add(f, fields, known); rec != nil {
			if err := emit(rec); err != nil {
				return finish(sum, scanner, asm), err
			}
		}
	}

	for _, rec := range asm.Flush() {
		if err := emit(rec); err != nil {
			return finish(sum, scanner, asm), err
		}
	}
	return finish(sum, scanner, asm), nil
}

func finish(sum Summary, scanner *frame.Scanner, asm *assemble.Assembler) Summary {
	sum.FramesRejected = scanner.Rejected()
	sum.SkippedBytes = scanner.Skipped()
	sum.FieldsDropped = asm.DroppedFields
	return sum
}
