// Package connection keeps a device link alive across drops.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent synchronized retries across devices
//   - Connection state tracking
//   - Automatic reconnection on link loss
//
// # Reconnection Strategy
//
// BLE peripherals sleep between advertising windows and drop links
// whenever they move out of range, so link loss is routine rather than
// exceptional. When it happens the manager retries with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, ...
//  3. Maximum delay: 3 minutes
//  4. Continue at the maximum until successful
//  5. Reset to 1s on a successful handshake
//
// # Jitter
//
// A controller talking to many devices should not wake them all on the
// same schedule:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// A reconnection is successful only when the session handshake completes:
// link established, session key negotiated, pairing confirmed, status
// probe answered. A link that connects but fails the handshake does NOT
// reset the backoff.
package connection
