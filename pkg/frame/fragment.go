package frame

import (
	"errors"
	"fmt"
)

// Fragmentation constants.
const (
	// DefaultMTU is the GATT write size Tuya BLE devices negotiate by
	// default.
	DefaultMTU = 20

	// MinMTU is the smallest MTU the fragmenter accepts: fragment 0 must
	// fit its packet number, the total length varint, the version byte and
	// at least one payload byte.
	MinMTU = 8

	// MaxSealedSize bounds the total sealed frame size accepted during
	// reassembly, to keep a garbled length varint from pinning memory.
	MaxSealedSize = 1 << 16
)

// Fragmentation errors.
var (
	// ErrMTUTooSmall indicates the negotiated MTU cannot carry fragment
	// headers.
	ErrMTUTooSmall = errors.New("mtu too small")

	// ErrStrayFragment indicates a non-initial fragment arrived with no
	// reassembly in progress. Dropped and logged, not fatal.
	ErrStrayFragment = errors.New("stray fragment")

	// ErrFragmentGap indicates a fragment number skipped ahead; the
	// in-progress reassembly is abandoned.
	ErrFragmentGap = errors.New("fragment gap")

	// ErrSealedTooLarge indicates the announced sealed length exceeds
	// MaxSealedSize.
	ErrSealedTooLarge = errors.New("sealed frame too large")

	// ErrOverflow indicates accumulated fragments exceed the announced
	// sealed length.
	ErrOverflow = errors.New("fragment data overflows announced length")
)

// Fragment splits a sealed frame into transport writes no larger than mtu.
// Fragment 0 carries the varint total length and the protocol version
// shifted into the high nibble; every fragment starts with its varint
// packet number.
func Fragment(sealed []byte, mtu int, version byte) ([][]byte, error) {
	if mtu < MinMTU {
		return nil, fmt.Errorf("%w: %d", ErrMTUTooSmall, mtu)
	}

	var packets [][]byte
	packetNum := uint32(0)
	pos := 0
	for pos < len(sealed) {
		packet := appendUvarint(nil, packetNum)
		if packetNum == 0 {
			packet = appendUvarint(packet, uint32(len(sealed)))
			packet = append(packet, version<<4)
		}

		room := mtu - len(packet)
		if room > len(sealed)-pos {
			room = len(sealed) - pos
		}
		packet = append(packet, sealed[pos:pos+room]...)
		packets = append(packets, packet)

		pos += room
		packetNum++
	}
	return packets, nil
}

// Assembler reassembles sealed frames from in-order transport fragments.
// The notification stream delivers fragments in order, so the assembler
// tracks only the next expected packet number: a stale number restarts
// reassembly, a gap abandons it. Not safe for concurrent use; the session
// serializes inbound notifications.
type Assembler struct {
	buf        []byte
	expected   uint32
	total      int
	version    byte
	assembling bool
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Version returns the protocol version nibble announced by the last
// fragment 0 seen.
func (a *Assembler) Version() byte {
	return a.version
}

// Reset discards any in-progress reassembly.
func (a *Assembler) Reset() {
	a.buf = nil
	a.expected = 0
	a.total = 0
	a.assembling = false
}

// Feed consumes one transport fragment. When the fragment completes a
// sealed frame, Feed returns it; otherwise it returns nil. Errors report
// dropped or abandoned input; the assembler is already reset and the next
// fragment 0 starts fresh, so no error is fatal to the session.
func (a *Assembler) Feed(data []byte) ([]byte, error) {
	packetNum, pos, err := uvarint(data, 0)
	if err != nil {
		a.Reset()
		return nil, fmt.Errorf("fragment number: %w", err)
	}

	// A device restarting transmission begins again at fragment 0.
	if a.assembling && packetNum < a.expected {
		a.Reset()
	}

	if !a.assembling {
		if packetNum != 0 {
			return nil, fmt.Errorf("%w: packet %d with no reassembly in progress", ErrStrayFragment, packetNum)
		}
		total, lenEnd, err := uvarint(data, pos)
		if err != nil {
			return nil, fmt.Errorf("sealed length: %w", err)
		}
		if int(total) > MaxSealedSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrSealedTooLarge, total)
		}
		if lenEnd >= len(data) {
			return nil, fmt.Errorf("version byte: %w", ErrBadVarint)
		}
		a.version = data[lenEnd] >> 4
		a.total = int(total)
		a.buf = make([]byte, 0, total)
		a.assembling = true
		pos = lenEnd + 1
	} else if packetNum != a.expected {
		a.Reset()
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrFragmentGap, a.expected, packetNum)
	}

	a.buf = append(a.buf, data[pos:]...)
	a.expected = packetNum + 1

	if len(a.buf) > a.total {
		err := fmt.Errorf("%w: %d > %d", ErrOverflow, len(a.buf), a.total)
		a.Reset()
		return nil, err
	}
	if len(a.buf) == a.total {
		sealed := a.buf
		a.Reset()
		return sealed, nil
	}
	return nil, nil
}
