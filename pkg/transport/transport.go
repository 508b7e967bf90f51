// Package transport defines the contract between the protocol engine and
// the BLE stack. The stack itself (scanning, bonding, adapter lifecycle) is
// owned externally; the engine only needs an ordered write path to the
// device's write characteristic and the notification stream coming back.
package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	// ErrNotConnected indicates a write on a disconnected transport.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyConnected indicates a connect on an open transport.
	ErrAlreadyConnected = errors.New("transport already connected")
)

// NotificationHandler receives one notification payload from the device.
// Handlers are invoked in notification order; a handler must not block.
type NotificationHandler func(data []byte)

// DisconnectHandler is invoked once when the link drops, with the cause
// (nil for a locally requested disconnect).
type DisconnectHandler func(err error)

// Transport is an established or establishable BLE link to one device.
// Implementations must deliver notifications in order and must be safe for
// Write calls from multiple goroutines.
type Transport interface {
	// Connect establishes the link and enables notifications.
	Connect(ctx context.Context) error

	// Write sends one fragment to the device's write characteristic.
	Write(ctx context.Context, data []byte) error

	// MTU returns the usable payload size per write/notification.
	MTU() int

	// SetNotificationHandler registers the notification sink. Must be
	// called before Connect; passing nil drops notifications.
	SetNotificationHandler(handler NotificationHandler)

	// SetDisconnectHandler registers the link-loss sink. Must be called
	// before Connect; passing nil drops the signal.
	SetDisconnectHandler(handler DisconnectHandler)

	// Disconnect tears the link down. Safe to call in any state and more
	// than once.
	Disconnect() error
}
