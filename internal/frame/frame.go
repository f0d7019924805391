package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SyncByte delimits frames on the bus. The septet encoding keeps every
// other byte of a well-formed frame below 0x80, so 0xAA cannot occur
// anywhere inside one.
const SyncByte = 0xAA

// Protocol versions carried in the header. Packets transport sampled
// data, datagrams transport parameter traffic.
const (
	VersionPacket   = 0x10
	VersionDatagram = 0x20
)

const (
	packetHeaderLen = 10 // sync, dest, source, version, command, frame count, checksum
	payloadGroupLen = 6  // four data bytes, septet, checksum
	datagramLen     = 16 // sync, dest, source, version, command, six data bytes, septet, checksum
)

var (
	ErrChecksumMismatch     = errors.New("frame: checksum mismatch")
	ErrMalformedSeptet      = errors.New("frame: malformed septet group")
	ErrHeaderLengthMismatch = errors.New("frame: length disagrees with header")
	ErrTruncated            = errors.New("frame: truncated mid-frame")
)

// Frame is one decoded VBus telegram stripped from transport details.
type Frame struct {
	Destination uint16
	Source      uint16
	Version     byte
	Command     uint16
	Payload     []byte
	Offset      int // position of the sync byte in the recording
}

// Parse decodes one complete frame from raw, which must span the sync
// byte through the final checksum with nothing following.
func Parse(raw []byte) (*Frame, error) {
	if len(raw) < 6 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(raw))
	}
	if raw[0] != SyncByte {
		return nil, fmt.Errorf("missing sync byte, got 0x%02X", raw[0])
	}
	switch raw[5] {
	case VersionPacket:
		return parsePacket(raw)
	case VersionDatagram:
		return parseDatagram(raw)
	default:
		return nil, fmt.Errorf("unsupported protocol version 0x%02X", raw[5])
	}
}

func parsePacket(raw []byte) (*Frame, error) {
	if len(raw) < packetHeaderLen {
		return nil, ErrTruncated
	}
	if err := checkClean(raw[1:packetHeaderLen]); err != nil {
		return nil, err
	}
	if Checksum(raw[1:9]) != raw[9] {
		return nil, ErrChecksumMismatch
	}
	count := int(raw[8])
	if len(raw) != packetHeaderLen+count*payloadGroupLen {
		return nil, ErrHeaderLengthMismatch
	}
	payload := make([]byte, 0, count*4)
	for i := 0; i < count; i++ {
		grp := raw[packetHeaderLen+i*payloadGroupLen:][:payloadGroupLen]
		if Checksum(grp[:5]) != grp[5] {
			return nil, ErrChecksumMismatch
		}
		decoded, err := DecodeSeptet(grp[:4], grp[4])
		if err != nil {
			return nil, err
		}
		payload = append(payload, decoded...)
	}
	return &Frame{
		Destination: binary.LittleEndian.Uint16(raw[1:3]),
		Source:      binary.LittleEndian.Uint16(raw[3:5]),
		Version:     raw[5],
		Command:     binary.LittleEndian.Uint16(raw[6:8]),
		Payload:     payload,
	}, nil
}

func parseDatagram(raw []byte) (*Frame, error) {
	if len(raw) < datagramLen {
		return nil, ErrTruncated
	}
	if len(raw) != datagramLen {
		return nil, ErrHeaderLengthMismatch
	}
	if err := checkClean(raw[1:datagramLen]); err != nil {
		return nil, err
	}
	if Checksum(raw[1:15]) != raw[15] {
		return nil, ErrChecksumMismatch
	}
	payload, err := DecodeSeptet(raw[8:14], raw[14])
	if err != nil {
		return nil, err
	}
	return &Frame{
		Destination: binary.LittleEndian.Uint16(raw[1:3]),
		Source:      binary.LittleEndian.Uint16(raw[3:5]),
		Version:     raw[5],
		Command:     binary.LittleEndian.Uint16(raw[6:8]),
		Payload:     payload,
	}, nil
}

// Checksum computes the additive VBus checksum: the low seven bits of
// the byte sum, complemented against 0x7F.
func Checksum(data []byte) byte {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return byte((0x7F - sum) & 0x7F)
}

// DecodeSeptet restores the high bits stripped from a group of up to
// seven data bytes. Bit k of the septet byte belongs to data byte k.
func DecodeSeptet(data []byte, septet byte) ([]byte, error) {
	if len(data) > 7 || septet >= 0x80 {
		return nil, ErrMalformedSeptet
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x80 {
			return nil, ErrMalformedSeptet
		}
		out[i] = b | (septet>>uint(i)&0x01)<<7
	}
	return out, nil
}

func checkClean(data []byte) error {
	for _, b := range data {
		if b >= 0x80 {
			return fmt.Errorf("stray byte 0x%02X inside frame", b)
		}
	}
	return nil
}
