// Package testutil builds wire-valid synthetic frames for tests. The
// encoders are the exact inverse of the decoders in internal/frame.
package testutil

import (
	"encoding/binary"

	"github.com/resol-de/vbus-sync/internal/frame"
)

// EncodePacket builds a complete packet frame. The payload is padded
// with zero bytes up to a whole number of four-byte groups.
func EncodePacket(dest, src, cmd uint16, payload []byte) []byte {
	count := (len(payload) + 3) / 4
	buf := make([]byte, 0, 10+count*6)
	buf = append(buf, frame.SyncByte)

	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint16(hdr[0:2], dest)
	binary.LittleEndian.PutUint16(hdr[2:4], src)
	hdr[4] = frame.VersionPacket
	binary.LittleEndian.PutUint16(hdr[5:7], cmd)
	hdr[7] = byte(count)
	buf = append(buf, hdr...)
	buf = append(buf, frame.Checksum(hdr))

	padded := make([]byte, count*4)
	copy(padded, payload)
	for i := 0; i < count; i++ {
		data, septet := EncodeSeptet(padded[i*4 : i*4+4])
		grp := append(data, septet)
		buf = append(buf, grp...)
		buf = append(buf, frame.Checksum(grp))
	}
	return buf
}

// EncodeDatagram builds a complete datagram frame carrying a parameter
// id and value.
func EncodeDatagram(dest, src, cmd, id uint16, value uint32) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, frame.SyncByte)

	body := make([]byte, 13)
	binary.LittleEndian.PutUint16(body[0:2], dest)
	binary.LittleEndian.PutUint16(body[2:4], src)
	body[4] = frame.VersionDatagram
	binary.LittleEndian.PutUint16(body[5:7], cmd)
	binary.LittleEndian.PutUint16(body[7:9], id)
	binary.LittleEndian.PutUint32(body[9:13], value)

	data, septet := EncodeSeptet(body[7:13])
	copy(body[7:13], data)
	body = append(body, septet)
	buf = append(buf, body...)
	buf = append(buf, frame.Checksum(body))
	return buf
}

// EncodeSeptet strips the high bits from up to seven data bytes into a
// septet byte.
func EncodeSeptet(data []byte) ([]byte, byte) {
	out := make([]byte, len(data))
	var septet byte
	for i, b := range data {
		out[i] = b & 0x7F
		if b&0x80 != 0 {
			septet |= 1 << uint(i)
		}
	}
	return out, septet
}

// LE16 renders v as two little-endian bytes, the payload convention.
func LE16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// LE32 renders v as four little-endian bytes.
func LE32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
