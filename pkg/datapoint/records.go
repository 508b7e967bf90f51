package datapoint

import (
	"errors"
	"fmt"
)

// ErrBadRecord indicates a malformed datapoint record stream.
var ErrBadRecord = errors.New("malformed datapoint record")

// recordHeaderSize is id + type tag + length.
const recordHeaderSize = 3

// Record is one raw datapoint record as carried in DP frames:
// id, type tag, length, value bytes.
type Record struct {
	// ID is the datapoint ID.
	ID uint8

	// WireType is the type tag the device attached.
	WireType Type

	// Data is the raw value payload.
	Data []byte
}

// AppendRecord appends the wire encoding of one record.
func AppendRecord(dst []byte, rec Record) ([]byte, error) {
	if len(rec.Data) > 0xFF {
		return nil, fmt.Errorf("%w: dp %d payload is %d bytes", ErrBadRecord, rec.ID, len(rec.Data))
	}
	dst = append(dst, rec.ID, byte(rec.WireType), byte(len(rec.Data)))
	return append(dst, rec.Data...), nil
}

// ParseRecords parses a datapoint record stream starting at pos. A length
// that runs past the buffer makes the remainder unreadable; the records
// parsed up to that point are returned together with the error, so one
// malformed trailing record does not discard an entire batch.
func ParseRecords(data []byte, pos int) ([]Record, error) {
	var records []Record
	for len(data)-pos >= recordHeaderSize {
		id := data[pos]
		wireType := Type(data[pos+1])
		length := int(data[pos+2])
		pos += recordHeaderSize

		if !wireType.IsValid() {
			return records, fmt.Errorf("%w: dp %d has type tag %d", ErrBadRecord, id, wireType)
		}
		if pos+length > len(data) {
			return records, fmt.Errorf("%w: dp %d length %d runs past buffer", ErrBadRecord, id, length)
		}

		records = append(records, Record{
			ID:       id,
			WireType: wireType,
			Data:     append([]byte(nil), data[pos:pos+length]...),
		})
		pos += length
	}
	return records, nil
}

// Update is one decoded datapoint from a batch.
type Update struct {
	// ID is the datapoint ID.
	ID uint8

	// Value is the decoded typed value.
	Value Value
}

// DecodeError reports one record of a batch that failed to decode.
type DecodeError struct {
	// ID is the datapoint ID of the failed record.
	ID uint8

	// Err is the decode failure.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("dp %d: %v", e.ID, e.Err)
}

// Unwrap returns the underlying decode failure.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeBatch decodes a record batch against the schema. Records that fail
// to decode are reported individually and do not abort the rest of the
// batch; the caller logs them with the raw bytes for diagnosis.
func (s *Schema) DecodeBatch(records []Record) ([]Update, []*DecodeError) {
	var updates []Update
	var failures []*DecodeError
	for _, rec := range records {
		v, err := s.Decode(rec.ID, rec.WireType, rec.Data)
		if err != nil {
			failures = append(failures, &DecodeError{ID: rec.ID, Err: err})
			continue
		}
		updates = append(updates, Update{ID: rec.ID, Value: v})
	}
	return updates, failures
}

// EncodeBatch encodes typed values to a record stream for a datapoint
// write frame. Any schema mismatch fails the whole call: a write must
// never silently drop part of its payload.
func (s *Schema) EncodeBatch(updates []Update) ([]byte, error) {
	var out []byte
	for _, u := range updates {
		wireType, raw, err := s.Encode(u.ID, u.Value)
		if err != nil {
			return nil, err
		}
		out, err = AppendRecord(out, Record{ID: u.ID, WireType: wireType, Data: raw})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
