package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

/*
Trace files (.tlog) are a bare sequence of CBOR-encoded Event maps, no
file header and no length framing: CBOR is self-delimiting, so a stream
decoder walks events back to back. Integer map keys (see the cbor struct
tags on Event) keep long captures small, and canonical ordering makes
the byte stream reproducible for a given event sequence.
*/

var traceEnc cbor.EncMode
var traceDec cbor.DecMode

func init() {
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		// Fragment timing matters at BLE speeds; keep nanoseconds.
		Time: cbor.TimeRFC3339Nano,
	}
	em, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: trace encoder mode: %v", err))
	}
	traceEnc = em

	// Lenient on decode so a trace from a newer engine still reads.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	dm, err := decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: trace decoder mode: %v", err))
	}
	traceDec = dm
}

// EncodeEvent encodes a single event as it would appear in a trace file.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes a single trace-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a streaming encoder writing trace-encoded events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns a streaming decoder reading trace-encoded events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
