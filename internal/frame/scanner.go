package frame

import (
	"errors"
	"fmt"

	"github.com/resol-de/vbus-sync/internal/stream"
)

// errShortTail marks a sync candidate too close to the end of the
// recording to hold any frame. Unlike ErrTruncated no header has been
// validated yet, so this is end of usable data rather than data loss.
var errShortTail = errors.New("frame: incomplete frame at end of stream")

// Scanner finds and decodes frames in a reservoir. After any rejected
// frame it discards a single byte and resumes scanning, so a corrupted
// region can never wedge the decoder.
type Scanner struct {
	res      *stream.Reservoir
	rejected int
	skipped  int
}

// NewScanner returns a scanner positioned at the reservoir's cursor.
func NewScanner(res *stream.Reservoir) *Scanner {
	return &Scanner{res: res}
}

// Rejected returns how many sync candidates failed validation.
func (s *Scanner) Rejected() int {
	return s.rejected
}

// Skipped returns how many bytes were discarded between frames.
func (s *Scanner) Skipped() int {
	return s.skipped
}

// Next returns the next valid frame. It returns (nil, nil) at end of
// stream and ErrTruncated when the recording ends inside a frame whose
// header already validated.
func (s *Scanner) Next() (*Frame, error) {
	for {
		if !s.seekSync() {
			return nil, nil
		}
		start := s.res.Position()
		f, length, err := s.parseAt()
		switch {
		case err == nil:
			if err := s.res.Consume(length); err != nil {
				return nil, err
			}
			f.Offset = start
			return f, nil
		case errors.Is(err, ErrTruncated):
			return nil, ErrTruncated
		case errors.Is(err, errShortTail):
			return nil, nil
		default:
			// One byte past the sync marker, then keep scanning.
			if err := s.res.Consume(1); err != nil {
				return nil, err
			}
			s.rejected++
		}
	}
}

func (s *Scanner) seekSync() bool {
	for {
		b, err := s.res.Peek(1)
		if err != nil {
			return false
		}
		if b[0] == SyncByte {
			return true
		}
		s.res.Consume(1)
		s.skipped++
	}
}

func (s *Scanner) parseAt() (*Frame, int, error) {
	pre, err := s.res.Peek(6)
	if err != nil {
		return nil, 0, errShortTail
	}
	switch pre[5] {
	case VersionPacket:
		hdr, err := s.res.Peek(packetHeaderLen)
		if err != nil {
			return nil, 0, errShortTail
		}
		if err := checkClean(hdr[1:]); err != nil {
			return nil, 0, err
		}
		if Checksum(hdr[1:9]) != hdr[9] {
			return nil, 0, ErrChecksumMismatch
		}
		length := packetHeaderLen + int(hdr[8])*payloadGroupLen
		raw, err := s.res.Peek(length)
		if err != nil {
			// The header validated, so a real frame started here and
			// the recording ends inside it.
			return nil, 0, ErrTruncated
		}
		f, err := parsePacket(raw)
		if err != nil {
			return nil, 0, err
		}
		return f, length, nil
	case VersionDatagram:
		raw, err := s.res.Peek(datagramLen)
		if err != nil {
			return nil, 0, errShortTail
		}
		f, err := parseDatagram(raw)
		if err != nil {
			return nil, 0, err
		}
		return f, datagramLen, nil
	default:
		return nil, 0, fmt.Errorf("unsupported protocol version 0x%02X", pre[5])
	}
}
