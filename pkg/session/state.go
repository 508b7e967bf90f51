package session

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of a session.
type State uint8

const (
	// StateDisconnected indicates no link is established.
	StateDisconnected State = iota

	// StatePairingRequested indicates the handshake opener was sent and the
	// session is waiting for the device info response.
	StatePairingRequested

	// StateAwaitingPairResponse indicates the session key is derived and the
	// pairing request is in flight.
	StateAwaitingPairResponse

	// StateKeyNegotiated indicates the device accepted the pairing, proving
	// both ends derived the same session key.
	StateKeyNegotiated

	// StateReady indicates the status probe completed and the session
	// accepts application traffic.
	StateReady

	// StateFaulted indicates the handshake failed. The session must be
	// disconnected and reconnected to recover.
	StateFaulted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StatePairingRequested:
		return "PAIRING_REQUESTED"
	case StateAwaitingPairResponse:
		return "AWAITING_PAIR_RESPONSE"
	case StateKeyNegotiated:
		return "KEY_NEGOTIATED"
	case StateReady:
		return "READY"
	case StateFaulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// Session errors.
var (
	// ErrHandshakeFailed indicates the handshake did not complete. The
	// usual cause is a stale or wrong local key, which surfaces as silence:
	// the device discards frames it cannot checksum.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrRequestTimeout indicates no response arrived within the deadline
	// across all retry attempts.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrLinkLost indicates the transport dropped underneath the session.
	ErrLinkLost = errors.New("link lost")

	// ErrCancelled indicates the caller ended the operation, either by
	// cancelling its context or by tearing the session down. Distinct from
	// ErrLinkLost: the link did not fail, the work was abandoned.
	ErrCancelled = errors.New("operation cancelled")

	// ErrNotReady indicates application traffic was attempted before the
	// handshake completed.
	ErrNotReady = errors.New("session not ready")
)

// DeviceError is a non-zero result code returned by the device.
type DeviceError struct {
	// Code is the command the device rejected.
	Code uint16

	// Result is the device result code.
	Result uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected command 0x%04X with result %d", e.Code, e.Result)
}
