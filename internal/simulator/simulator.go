// Package simulator implements the device side of the Tuya BLE local
// protocol in memory. It backs the package tests and the interactive shell
// with a device that speaks the real wire format end to end: login-key
// handshake, session-key derivation, fragment reassembly and datapoint
// pushes, without a BLE adapter anywhere near it.
package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/tuya-local/tuyable-go/pkg/crypto"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/frame"
	"github.com/tuya-local/tuyable-go/pkg/transport"
)

// Config describes the simulated device.
type Config struct {
	// DeviceID is the cloud device identifier.
	DeviceID string

	// UUID is the device hardware identifier.
	UUID string

	// LocalKey is the pre-shared key; the controller must present a
	// matching one to get through the handshake.
	LocalKey []byte

	// Schema declares the device's datapoints.
	Schema *datapoint.Schema

	// MTU is the usable write/notification size. Defaults to
	// frame.DefaultMTU.
	MTU int

	// ProtocolVersion reported in the device info response and stamped on
	// fragment 0. Defaults to 3.
	ProtocolVersion byte

	// AlreadyPaired makes the device answer pairing with the
	// "already bound" result.
	AlreadyPaired bool
}

// Device is a simulated Tuya BLE device. It implements
// transport.Transport, so a session connects to it exactly as it would to
// a real link.
type Device struct {
	mu sync.Mutex

	cfg  Config
	ring *crypto.Keyring
	asm  *frame.Assembler

	connected bool
	paired    bool
	seq       uint32 // device-originated sequence numbers

	localNonce []byte // learned from the device info request
	srand      []byte
	authKey    []byte

	dps map[uint8]datapoint.Value

	notify       transport.NotificationHandler
	onDisconnect transport.DisconnectHandler

	// requestFilter may swallow inbound frames (for timeout tests).
	// Return false to drop the frame without a response.
	requestFilter func(*frame.Frame) bool

	seqLog     map[frame.Code][]uint32
	writeLog   map[uint8][]datapoint.Value
	badFrames  int
	timeAnswer []byte
	timeReqSeq uint32
}

// New creates a simulated device.
func New(cfg Config) (*Device, error) {
	if cfg.MTU == 0 {
		cfg.MTU = frame.DefaultMTU
	}
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = 3
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("simulator requires a schema")
	}
	ring, err := crypto.NewKeyring(cfg.LocalKey)
	if err != nil {
		return nil, err
	}
	return &Device{
		cfg:      cfg,
		ring:     ring,
		asm:      frame.NewAssembler(),
		dps:      make(map[uint8]datapoint.Value),
		seqLog:   make(map[frame.Code][]uint32),
		writeLog: make(map[uint8][]datapoint.Value),
	}, nil
}

// SetDatapoint seeds or updates the device-side datapoint store without
// notifying the controller.
func (d *Device) SetDatapoint(id uint8, v datapoint.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dps[id] = v
}

// Datapoint returns the device-side value of a datapoint.
func (d *Device) Datapoint(id uint8) (datapoint.Value, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.dps[id]
	return v, ok
}

// SetRequestFilter installs a frame filter. Returning false swallows the
// frame: no response is sent, as if the device never heard it.
func (d *Device) SetRequestFilter(filter func(*frame.Frame) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requestFilter = filter
}

// SeqNums returns the sequence numbers of frames received for a code, in
// arrival order.
func (d *Device) SeqNums(code frame.Code) []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.seqLog[code]...)
}

// Writes returns the values the controller wrote to a datapoint, in
// application order.
func (d *Device) Writes(id uint8) []datapoint.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]datapoint.Value(nil), d.writeLog[id]...)
}

// BadFrames returns how many inbound frames failed decryption or checksum.
func (d *Device) BadFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badFrames
}

// Paired reports whether the handshake completed.
func (d *Device) Paired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paired
}

// Connect implements transport.Transport.
func (d *Device) Connect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return transport.ErrAlreadyConnected
	}
	d.connected = true
	d.paired = false
	d.seq = 0
	d.asm.Reset()
	ring, err := crypto.NewKeyring(d.cfg.LocalKey)
	if err != nil {
		return err
	}
	d.ring = ring
	return nil
}

// MTU implements transport.Transport.
func (d *Device) MTU() int {
	return d.cfg.MTU
}

// SetNotificationHandler implements transport.Transport.
func (d *Device) SetNotificationHandler(handler transport.NotificationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = handler
}

// SetDisconnectHandler implements transport.Transport.
func (d *Device) SetDisconnectHandler(handler transport.DisconnectHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisconnect = handler
}

// Disconnect implements transport.Transport.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.connected = false
	d.paired = false
	handler := d.onDisconnect
	d.mu.Unlock()

	if handler != nil {
		handler(nil)
	}
	return nil
}

// DropLink simulates an unexpected link loss.
func (d *Device) DropLink(err error) {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.paired = false
	handler := d.onDisconnect
	d.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

// Write implements transport.Transport. Fragments are reassembled and
// complete frames handled; responses arrive asynchronously through the
// notification handler, as they would over a real link.
func (d *Device) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return transport.ErrNotConnected
	}

	sealed, err := d.asm.Feed(data)
	if err != nil {
		d.badFrames++
		d.mu.Unlock()
		return nil // garbled input is the peer's problem, not a write error
	}
	if sealed == nil {
		d.mu.Unlock()
		return nil
	}

	f, ok := d.openLocked(sealed)
	if !ok {
		d.mu.Unlock()
		return nil
	}
	d.seqLog[f.Code] = append(d.seqLog[f.Code], f.SeqNum)
	if d.requestFilter != nil && !d.requestFilter(f) {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	go d.handle(f)
	return nil
}

// openLocked decrypts and decodes a sealed frame. Failures count as bad
// frames and are otherwise ignored, like a real device ignores noise.
func (d *Device) openLocked(sealed []byte) (*frame.Frame, bool) {
	plaintext, _, err := d.ring.Open(sealed)
	if err != nil {
		d.badFrames++
		return nil, false
	}
	f, err := frame.Decode(plaintext)
	if err != nil {
		d.badFrames++
		return nil, false
	}
	return f, true
}
