package frame

import (
	"errors"
)

// maxVarintLen bounds the 7-bit varint used for fragment numbers and
// lengths. Four bytes cover 28 bits, far beyond any sealed frame size.
const maxVarintLen = 4

// ErrBadVarint indicates a truncated or over-long varint.
var ErrBadVarint = errors.New("bad varint")

// appendUvarint appends v in the protocol's little-endian 7-bit varint
// encoding and returns the extended slice.
func appendUvarint(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// PacketNum returns the packet number a transport fragment starts with.
func PacketNum(fragment []byte) (uint32, error) {
	v, _, err := uvarint(fragment, 0)
	return v, err
}

// uvarint decodes a varint starting at data[pos] and returns the value and
// the position past it.
func uvarint(data []byte, pos int) (uint32, int, error) {
	var v uint32
	for offset := 0; offset < maxVarintLen; offset++ {
		if pos+offset >= len(data) {
			return 0, 0, ErrBadVarint
		}
		b := data[pos+offset]
		v |= uint32(b&0x7F) << (offset * 7)
		if b&0x80 == 0 {
			return v, pos + offset + 1, nil
		}
	}
	return 0, 0, ErrBadVarint
}
