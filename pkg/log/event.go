package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceID is the device identifier.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// Address is the BLE address of the peer.
	Address string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Fragment    *FragmentEvent    `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Frame layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	Datapoint   *DatapointEvent   `cbor:"13,keyasint,omitempty"` // Datapoint updates
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the fragment layer (raw BLE writes/notifications).
	LayerTransport Layer = 0
	// LayerFrame is the logical frame layer (decrypted, reassembled).
	LayerFrame Layer = 1
	// LayerSession is the session/handshake layer.
	LayerSession Layer = 2
	// LayerDatapoint is the typed datapoint layer.
	LayerDatapoint Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerFrame:
		return "FRAME"
	case LayerSession:
		return "SESSION"
	case LayerDatapoint:
		return "DATAPOINT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (command/response/push).
	CategoryMessage Category = 0
	// CategoryControl indicates a control exchange (time sync, acks).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FragmentEvent captures a raw transport fragment.
type FragmentEvent struct {
	// Size is the fragment size in bytes.
	Size int `cbor:"1,keyasint"`

	// PacketNum is the fragment number within the frame.
	PacketNum uint32 `cbor:"2,keyasint"`

	// Data is the raw fragment bytes (may be truncated for large fragments).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// MessageEvent captures a decoded logical frame.
type MessageEvent struct {
	// SeqNum is the frame sequence number.
	SeqNum uint32 `cbor:"1,keyasint"`

	// ResponseTo is the sequence number this frame responds to (0 if none).
	ResponseTo uint32 `cbor:"2,keyasint,omitempty"`

	// Code is the command code.
	Code uint16 `cbor:"3,keyasint"`

	// DataLen is the payload length in bytes.
	DataLen int `cbor:"4,keyasint"`

	// Result is the device result code, for response frames that carry one.
	Result *uint8 `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection manager state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// DatapointEvent captures a typed datapoint update.
type DatapointEvent struct {
	// ID is the datapoint ID.
	ID uint8 `cbor:"1,keyasint"`

	// Type is the datapoint wire type tag.
	Type uint8 `cbor:"2,keyasint"`

	// Value is a human-readable rendering of the value.
	Value string `cbor:"3,keyasint,omitempty"`

	// FromDevice indicates the update originated from the device.
	FromDevice bool `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context provides additional context (e.g. raw bytes, hex-encoded).
	Context string `cbor:"3,keyasint,omitempty"`

	// Code is an error code if available (device result codes).
	Code *int `cbor:"4,keyasint,omitempty"`
}
