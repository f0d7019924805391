package stream

import "errors"

// ErrTruncated reports a request for more bytes than the reservoir holds.
var ErrTruncated = errors.New("stream: truncated")

// Reservoir is a resumable cursor over one recording's raw bytes. It
// never blocks: the underlying data is a fully materialized buffer.
type Reservoir struct {
	data []byte
	pos  int
}

// New wraps a recording buffer in a reservoir positioned at offset 0.
func New(data []byte) *Reservoir {
	return &Reservoir{data: data}
}

// Peek returns n bytes starting at the cursor without consuming them.
// The returned slice aliases the underlying buffer.
func (r *Reservoir) Peek(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, ErrTruncated
	}
	return r.data[r.pos : r.pos+n], nil
}

// Consume advances the cursor by n bytes.
func (r *Reservoir) Consume(n int) error {
	if r.pos+n > len(r.data) {
		return ErrTruncated
	}
	r.pos += n
	return nil
}

// Position returns the absolute offset of the cursor in the recording.
func (r *Reservoir) Position() int {
	return r.pos
}

// Remaining reports how many bytes are left past the cursor.
func (r *Reservoir) Remaining() int {
	return len(r.data) - r.pos
}
