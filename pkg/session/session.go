// Package session implements the controller side of the Tuya BLE local
// protocol: the handshake that negotiates a session key, the state machine
// tracking its progress, and the request/response correlator that matches
// device answers to outstanding commands by sequence number.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tuya-local/tuyable-go/pkg/crypto"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/frame"
	"github.com/tuya-local/tuyable-go/pkg/log"
	"github.com/tuya-local/tuyable-go/pkg/transport"
	"github.com/tuya-local/tuyable-go/pkg/version"
)

// Defaults.
const (
	// DefaultRequestTimeout is how long one attempt waits for a response.
	DefaultRequestTimeout = 4 * time.Second

	// DefaultRetries is how many attempts a request gets. Each attempt uses
	// a fresh sequence number so a late answer to an earlier attempt cannot
	// be mistaken for the current one.
	DefaultRetries = 3

	// DefaultProtocolVersion is stamped on outgoing fragment zero.
	DefaultProtocolVersion = 3
)

// pairPayloadSize is the zero-padded size of the pairing request payload.
const pairPayloadSize = 44

// deviceInfoMinSize is the smallest valid device info response payload.
const deviceInfoMinSize = 14 + crypto.AuthKeySize

// Config configures a session.
type Config struct {
	// DeviceID is the cloud device identifier, part of the pairing payload.
	DeviceID string

	// UUID is the device hardware identifier, part of the pairing payload.
	UUID string

	// LocalKey is the pre-shared key the handshake derives all keys from.
	LocalKey []byte

	// Transport carries fragments to and from the device.
	Transport transport.Transport

	// Address is the BLE address, used for logging only.
	Address string

	// Logger receives protocol events. Defaults to the no-op logger.
	Logger log.Logger

	// RequestTimeout is the per-attempt response deadline.
	RequestTimeout time.Duration

	// Retries is the number of attempts per request.
	Retries int

	// ProtocolVersion overrides the fragment version nibble.
	ProtocolVersion byte

	// Now supplies the clock for device time requests. Defaults to
	// time.Now.
	Now func() time.Time
}

// DeviceInfo is what the device reports about itself during the handshake.
type DeviceInfo struct {
	// DeviceVersion is the firmware version.
	DeviceVersion version.Version

	// ProtocolVersion is the wire protocol version.
	ProtocolVersion version.Version

	// HardwareVersion is the hardware revision.
	HardwareVersion version.Version

	// Flags is the raw capability flags byte.
	Flags byte

	// Bound reports whether the device considers itself bound already.
	Bound bool
}

// Push is a device-originated datapoint report, delivered to the push
// handler after the session acknowledged it on the wire. Records are raw;
// decoding against a product schema is the caller's concern.
type Push struct {
	// Records are the raw datapoint records of the report.
	Records []datapoint.Record

	// Timestamp is the device-supplied report time, if the push carried one.
	Timestamp time.Time

	// HasTimestamp reports whether Timestamp is valid.
	HasTimestamp bool

	// DPSeq is the device push counter for signed reports.
	DPSeq uint16

	// Signed reports whether the push carried a counter.
	Signed bool
}

// PushHandler receives device-originated datapoint reports.
type PushHandler func(Push)

// StateChangeHandler receives session state transitions. The reason is nil
// for normal progress and carries the failure for transitions into
// StateFaulted or StateDisconnected.
type StateChangeHandler func(oldState, newState State, reason error)

// attempt tracks one in-flight connect so concurrent callers can join it.
type attempt struct {
	done chan struct{}
	err  error
}

// Session is one secure link to a device. All methods are safe for
// concurrent use; outgoing fragments are serialized by a single writer.
type Session struct {
	mu sync.Mutex

	cfg   Config
	id    string
	state State
	info  DeviceInfo

	ring       *crypto.Keyring
	localNonce []byte

	connecting *attempt

	onPush        PushHandler
	onStateChange StateChangeHandler

	// Correlator state.
	seq       uint32
	pending   map[uint32]chan result
	pendingMu sync.Mutex

	// writeMu serializes fragment writes to the transport.
	writeMu sync.Mutex

	asm *frame.Assembler

	// dpLocks serializes writes per datapoint ID.
	dpLocks map[uint8]*dpQueue
	dpMu    sync.Mutex
}

// New creates a session over the given transport. The session starts
// disconnected; Connect runs the handshake.
func New(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("session requires a transport")
	}
	if len(cfg.LocalKey) < crypto.LocalKeyPrefixSize {
		return nil, crypto.ErrShortLocalKey
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger{}
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = DefaultProtocolVersion
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		cfg:     cfg,
		id:      uuid.New().String(),
		state:   StateDisconnected,
		pending: make(map[uint32]chan result),
		asm:     frame.NewAssembler(),
		dpLocks: make(map[uint8]*dpQueue),
	}
	cfg.Transport.SetNotificationHandler(s.handleNotification)
	cfg.Transport.SetDisconnectHandler(s.handleDisconnect)
	return s, nil
}

// ID returns the session identifier used in log events.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns what the device reported during the handshake. Valid once
// the session reached StateKeyNegotiated.
func (s *Session) Info() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// OnPush sets the handler for device-originated datapoint reports.
func (s *Session) OnPush(handler PushHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPush = handler
}

// OnStateChange sets the handler for state transitions.
func (s *Session) OnStateChange(handler StateChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = handler
}

// Connect establishes the link and runs the handshake. If another Connect
// is already in flight the call joins it and returns its outcome. Connect
// on a ready session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	if s.connecting != nil {
		att := s.connecting
		s.mu.Unlock()
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
	}
	att := &attempt{done: make(chan struct{})}
	s.connecting = att
	s.mu.Unlock()

	err := s.handshake(ctx)

	s.mu.Lock()
	s.connecting = nil
	s.mu.Unlock()
	att.err = err
	close(att.done)
	return err
}

// handshake drives the full key negotiation:
//
//	device info (login key, carries our nonce) -> derive session key ->
//	pair (session key, proves the derivation) -> status probe -> ready
func (s *Session) handshake(ctx context.Context) error {
	ring, err := crypto.NewKeyring(s.cfg.LocalKey)
	if err != nil {
		return err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ring = ring
	s.localNonce = nonce
	s.asm.Reset()
	faulted := s.state == StateFaulted
	s.mu.Unlock()
	s.failPending(ErrCancelled)

	// A faulted session passes through DISCONNECTED before a new attempt.
	if faulted {
		s.setState(StateDisconnected, nil)
	}

	if err := s.cfg.Transport.Connect(ctx); err != nil {
		if err != transport.ErrAlreadyConnected {
			return s.fault(fmt.Errorf("%w: connect: %w", ErrHandshakeFailed, err))
		}
	}

	s.setState(StatePairingRequested, nil)
	resp, err := s.roundTrip(ctx, frame.CodeDeviceInfo, nonce, crypto.FlagLoginKey)
	if err != nil {
		return s.fault(fmt.Errorf("%w: device info: %w", ErrHandshakeFailed, err))
	}
	if len(resp.Data) < deviceInfoMinSize {
		return s.fault(fmt.Errorf("%w: short device info response (%d bytes)", ErrHandshakeFailed, len(resp.Data)))
	}

	protocol := version.FromBytes(resp.Data[2], resp.Data[3])
	if !version.Supported(protocol) {
		return s.fault(fmt.Errorf("%w: unsupported device protocol %s", ErrHandshakeFailed, protocol))
	}

	remoteNonce := resp.Data[6:12]
	sessionKey, err := crypto.DeriveSessionKey(s.cfg.LocalKey, nonce, remoteNonce)
	if err != nil {
		return s.fault(fmt.Errorf("%w: %w", ErrHandshakeFailed, err))
	}

	s.mu.Lock()
	s.ring.SetSessionKey(sessionKey)
	s.ring.SetAuthKey(resp.Data[14 : 14+crypto.AuthKeySize])
	s.info = DeviceInfo{
		DeviceVersion:   version.FromBytes(resp.Data[0], resp.Data[1]),
		ProtocolVersion: protocol,
		HardwareVersion: version.FromBytes(resp.Data[12], resp.Data[13]),
		Flags:           resp.Data[4],
		Bound:           resp.Data[5] != 0,
	}
	s.mu.Unlock()

	s.setState(StateAwaitingPairResponse, nil)
	pairResp, err := s.roundTrip(ctx, frame.CodePair, s.pairPayload(), crypto.FlagSessionKey)
	if err != nil {
		return s.fault(fmt.Errorf("%w: pair: %w", ErrHandshakeFailed, err))
	}
	// Result 2 means the device is already bound to us, which is success.
	if len(pairResp.Data) != 1 || (pairResp.Data[0] != 0 && pairResp.Data[0] != 2) {
		result := uint8(0xFF)
		if len(pairResp.Data) == 1 {
			result = pairResp.Data[0]
		}
		return s.fault(fmt.Errorf("%w: %w", ErrHandshakeFailed,
			&DeviceError{Code: uint16(frame.CodePair), Result: result}))
	}
	s.setState(StateKeyNegotiated, nil)

	// Probe confirms the device answers application traffic under the new
	// key and triggers its initial datapoint report.
	if _, err := s.roundTrip(ctx, frame.CodeDeviceStatus, nil, crypto.FlagSessionKey); err != nil {
		return s.fault(fmt.Errorf("%w: status probe: %w", ErrHandshakeFailed, err))
	}

	s.setState(StateReady, nil)
	return nil
}

// pairPayload renders uuid + localKey[:6] + deviceID zero-padded to the
// fixed pairing payload size.
func (s *Session) pairPayload() []byte {
	payload := make([]byte, 0, pairPayloadSize)
	payload = append(payload, s.cfg.UUID...)
	payload = append(payload, s.cfg.LocalKey[:crypto.LocalKeyPrefixSize]...)
	payload = append(payload, s.cfg.DeviceID...)
	for len(payload) < pairPayloadSize {
		payload = append(payload, 0)
	}
	return payload[:pairPayloadSize]
}

// SendDatapoints writes a batch of raw datapoint records. Writes touching
// the same datapoint ID are serialized so later values cannot overtake
// earlier ones; writes to disjoint datapoints proceed concurrently.
func (s *Session) SendDatapoints(ctx context.Context, records []datapoint.Record) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	data := make([]byte, 0, 64)
	ids := make([]uint8, 0, len(records))
	for _, rec := range records {
		var err error
		data, err = datapoint.AppendRecord(data, rec)
		if err != nil {
			return err
		}
		ids = append(ids, rec.ID)
	}

	unlock := s.lockDatapoints(ids)
	defer unlock()

	resp, err := s.roundTrip(ctx, frame.CodeSendDatapoints, data, crypto.FlagSessionKey)
	if err != nil {
		return err
	}
	if len(resp.Data) == 1 && resp.Data[0] != 0 {
		return &DeviceError{Code: uint16(frame.CodeSendDatapoints), Result: resp.Data[0]}
	}
	return nil
}

// RequestStatus asks the device for a full datapoint report. The report
// itself arrives as a push.
func (s *Session) RequestStatus(ctx context.Context) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	_, err := s.roundTrip(ctx, frame.CodeDeviceStatus, nil, crypto.FlagSessionKey)
	return err
}

// Unbind asks the device to forget its binding. The session is left in
// StateDisconnected; the device typically drops the link afterwards.
func (s *Session) Unbind(ctx context.Context) error {
	return s.terminal(ctx, frame.CodeUnbind)
}

// Reset asks the device to factory reset. The session is left in
// StateDisconnected.
func (s *Session) Reset(ctx context.Context) error {
	return s.terminal(ctx, frame.CodeDeviceReset)
}

func (s *Session) terminal(ctx context.Context, code frame.Code) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	resp, err := s.roundTrip(ctx, code, nil, crypto.FlagSessionKey)
	if err != nil {
		return err
	}
	if len(resp.Data) == 1 && resp.Data[0] != 0 {
		return &DeviceError{Code: uint16(code), Result: resp.Data[0]}
	}
	s.setState(StateDisconnected, nil)
	return nil
}

// Disconnect tears the session down. Pending requests fail with
// ErrCancelled. Safe to call in any state and idempotent.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	wasDisconnected := s.state == StateDisconnected
	s.mu.Unlock()

	s.failPending(ErrCancelled)
	err := s.cfg.Transport.Disconnect()
	if !wasDisconnected {
		s.setState(StateDisconnected, nil)
	}
	return err
}

func (s *Session) requireReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("%w: state %s", ErrNotReady, s.state)
	}
	return nil
}

// fault moves the session to StateFaulted and returns the error.
func (s *Session) fault(err error) error {
	s.setState(StateFaulted, err)
	return err
}

// setState transitions the state, logs it, and notifies the handler.
func (s *Session) setState(newState State, reason error) {
	s.mu.Lock()
	oldState := s.state
	if oldState == newState {
		s.mu.Unlock()
		return
	}
	s.state = newState
	handler := s.onStateChange
	s.mu.Unlock()

	reasonText := ""
	if reason != nil {
		reasonText = reason.Error()
	}
	s.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		DeviceID:  s.cfg.DeviceID,
		Address:   s.cfg.Address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reasonText,
		},
	})
	if handler != nil {
		handler(oldState, newState, reason)
	}
}

// handleDisconnect reacts to the transport dropping. All pending work
// fails with ErrLinkLost.
func (s *Session) handleDisconnect(err error) {
	s.failPending(ErrLinkLost)

	s.mu.Lock()
	tearing := s.state == StateDisconnected
	s.mu.Unlock()
	if tearing {
		return
	}
	reason := ErrLinkLost
	if err != nil {
		reason = fmt.Errorf("%w: %v", ErrLinkLost, err)
	}
	s.setState(StateDisconnected, reason)
}

// dpQueue is a FIFO lock. A plain mutex hands off to blocked writers in
// no particular order; here waiters are released strictly in arrival
// order so a later value for a datapoint cannot overtake an earlier one.
type dpQueue struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func (q *dpQueue) lock() {
	q.mu.Lock()
	if !q.held {
		q.held = true
		q.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()
	<-ch
}

// unlock hands the queue to the oldest waiter, keeping it held.
func (q *dpQueue) unlock() {
	q.mu.Lock()
	if len(q.waiters) == 0 {
		q.held = false
	} else {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
	}
	q.mu.Unlock()
}

// lockDatapoints acquires the per-datapoint write queues for the given IDs
// in ascending order and returns the matching unlock.
func (s *Session) lockDatapoints(ids []uint8) func() {
	uniq := make([]uint8, 0, len(ids))
	seen := make(map[uint8]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	queues := make([]*dpQueue, 0, len(uniq))
	s.dpMu.Lock()
	for _, id := range uniq {
		q, ok := s.dpLocks[id]
		if !ok {
			q = &dpQueue{}
			s.dpLocks[id] = q
		}
		queues = append(queues, q)
	}
	s.dpMu.Unlock()

	for _, q := range queues {
		q.lock()
	}
	return func() {
		for i := len(queues) - 1; i >= 0; i-- {
			queues[i].unlock()
		}
	}
}
