package datapoint

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"
)

// Timestamp encodings used by timestamped datapoint pushes.
const (
	// timestampMillisString is a 13-digit decimal millisecond string.
	timestampMillisString = 0

	// timestampSeconds is a big-endian uint32 of Unix seconds.
	timestampSeconds = 1
)

// ParseTimestamp parses the timestamp prefix of a timestamped datapoint
// push and returns the time together with the position past it.
func ParseTimestamp(data []byte, pos int) (time.Time, int, error) {
	if pos >= len(data) {
		return time.Time{}, 0, fmt.Errorf("%w: missing timestamp type", ErrBadRecord)
	}
	encoding := data[pos]
	pos++

	switch encoding {
	case timestampMillisString:
		end := pos + 13
		if end > len(data) {
			return time.Time{}, 0, fmt.Errorf("%w: millisecond timestamp truncated", ErrBadRecord)
		}
		millis, err := strconv.ParseInt(string(data[pos:end]), 10, 64)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("%w: millisecond timestamp: %v", ErrBadRecord, err)
		}
		return time.UnixMilli(millis), end, nil

	case timestampSeconds:
		end := pos + 4
		if end > len(data) {
			return time.Time{}, 0, fmt.Errorf("%w: seconds timestamp truncated", ErrBadRecord)
		}
		secs := binary.BigEndian.Uint32(data[pos:end])
		return time.Unix(int64(secs), 0), end, nil

	default:
		return time.Time{}, 0, fmt.Errorf("%w: timestamp type %d", ErrBadRecord, encoding)
	}
}
