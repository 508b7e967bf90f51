package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tuya-local/tuyable-go/pkg/crypto"
)

// Frame layout constants.
const (
	// HeaderSize is the fixed plaintext header: seqNum, responseTo, code,
	// dataLen.
	HeaderSize = 12

	// CRCSize is the size of the checksum trailer.
	CRCSize = 2

	// MaxDataSize is the maximum payload a single frame can carry.
	MaxDataSize = 0xFFFF
)

// Frame codec errors.
var (
	// ErrTruncated indicates the plaintext is shorter than its own length
	// field claims.
	ErrTruncated = errors.New("frame truncated")

	// ErrBadCRC indicates the checksum did not validate.
	ErrBadCRC = errors.New("frame checksum mismatch")

	// ErrDataTooLarge indicates the payload exceeds the length field range.
	ErrDataTooLarge = errors.New("frame data too large")
)

// Frame is one logical protocol message. Data may be empty: acknowledgement
// frames carry no payload.
type Frame struct {
	// SeqNum is the frame sequence number, unique per direction within a
	// session.
	SeqNum uint32

	// ResponseTo is the sequence number of the frame this one answers,
	// or 0 for unsolicited frames.
	ResponseTo uint32

	// Code is the command code.
	Code Code

	// Data is the command payload.
	Data []byte
}

// IsResponse reports whether the frame answers an earlier frame.
func (f *Frame) IsResponse() bool {
	return f.ResponseTo != 0
}

// Encode serializes the frame to plaintext bytes: header, data, CRC16.
// The result is handed to the crypto layer for sealing; zero padding to the
// cipher block is the sealer's concern.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Data) > MaxDataSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(f.Data))
	}

	out := make([]byte, HeaderSize+len(f.Data)+CRCSize)
	binary.BigEndian.PutUint32(out[0:4], f.SeqNum)
	binary.BigEndian.PutUint32(out[4:8], f.ResponseTo)
	binary.BigEndian.PutUint16(out[8:10], uint16(f.Code))
	binary.BigEndian.PutUint16(out[10:12], uint16(len(f.Data)))
	copy(out[HeaderSize:], f.Data)
	crc := crypto.CRC16(out[:HeaderSize+len(f.Data)])
	binary.BigEndian.PutUint16(out[HeaderSize+len(f.Data):], crc)
	return out, nil
}

// Decode parses plaintext bytes (as returned by the crypto layer, possibly
// with cipher padding after the CRC) into a logical frame. The checksum must
// validate before any payload is returned.
func Decode(plaintext []byte) (*Frame, error) {
	if len(plaintext) < HeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(plaintext))
	}

	dataLen := int(binary.BigEndian.Uint16(plaintext[10:12]))
	dataEnd := HeaderSize + dataLen
	if len(plaintext) < dataEnd+CRCSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, dataEnd+CRCSize, len(plaintext))
	}

	wantCRC := binary.BigEndian.Uint16(plaintext[dataEnd : dataEnd+CRCSize])
	if gotCRC := crypto.CRC16(plaintext[:dataEnd]); gotCRC != wantCRC {
		return nil, fmt.Errorf("%w: computed %#04x, frame says %#04x", ErrBadCRC, gotCRC, wantCRC)
	}

	f := &Frame{
		SeqNum:     binary.BigEndian.Uint32(plaintext[0:4]),
		ResponseTo: binary.BigEndian.Uint32(plaintext[4:8]),
		Code:       Code(binary.BigEndian.Uint16(plaintext[8:10])),
	}
	if dataLen > 0 {
		f.Data = make([]byte, dataLen)
		copy(f.Data, plaintext[HeaderSize:dataEnd])
	}
	return f, nil
}
