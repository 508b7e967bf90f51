package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tuya-local/tuyable-go/pkg/log"
)

// Manager errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// DefaultConnectTimeout bounds one reconnection attempt. A BLE connect
// plus handshake finishes well within this on a reachable device.
const DefaultConnectTimeout = 30 * time.Second

// State represents the managed connection state.
type State uint8

const (
	// StateDisconnected indicates no active link.
	StateDisconnected State = iota

	// StateConnecting indicates a caller-initiated attempt is in progress.
	StateConnecting

	// StateConnected indicates an active, handshaken link.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the manager was shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes the link. For a Tuya BLE device this is the
// session's Connect: BLE link plus key handshake, nil on success.
type ConnectFunc func(ctx context.Context) error

// Config configures a connection manager.
type Config struct {
	// Connect establishes the link.
	Connect ConnectFunc

	// Backoff overrides the backoff parameters.
	Backoff BackoffConfig

	// ConnectTimeout bounds one reconnection attempt.
	ConnectTimeout time.Duration

	// DeviceID tags log events.
	DeviceID string

	// Logger receives state change events. Defaults to the no-op logger.
	Logger log.Logger
}

// Manager keeps a device link alive: it runs caller-initiated connects,
// watches for link loss, and reconnects with exponential backoff until the
// device reappears or the manager is closed.
type Manager struct {
	mu sync.RWMutex

	cfg     Config
	state   State
	backoff *Backoff

	autoReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a connection manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:           cfg,
		state:         StateDisconnected,
		backoff:       NewBackoffWithConfig(cfg.Backoff),
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the link is up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect runs a caller-initiated connection attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.mu.Unlock()

	m.setState(StateConnecting)

	if err := m.cfg.Connect(ctx); err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.backoff.Reset()
	m.setState(StateConnected)
	m.mu.RLock()
	onConnected := m.onConnected
	m.mu.RUnlock()
	if onConnected != nil {
		onConnected()
	}
	return nil
}

// NotifyConnectionLost reports a dropped link, typically from the session's
// link-lost transition. Automatic reconnection starts if enabled.
func (m *Manager) NotifyConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	autoReconnect := m.autoReconnect
	m.mu.Unlock()

	if autoReconnect {
		m.setState(StateReconnecting)
	} else {
		m.setState(StateDisconnected)
	}

	m.mu.RLock()
	onDisconnected := m.onDisconnected
	m.mu.RUnlock()
	if onDisconnected != nil {
		onDisconnected()
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection loop. Call once
// after creating the manager.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the manager down and waits for the reconnect loop to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.setState(StateClosed)
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// Already pending.
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect retries the connect with backoff until it succeeds or
// the manager is closed.
func (m *Manager) attemptReconnect() {
	for {
		m.mu.RLock()
		state := m.state
		onReconnecting := m.onReconnecting
		m.mu.RUnlock()
		if state == StateClosed || state == StateConnected {
			return
		}

		delay := m.backoff.Next()
		attempts := m.backoff.Attempts()
		if onReconnecting != nil {
			onReconnecting(attempts, delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		m.mu.RLock()
		state = m.state
		m.mu.RUnlock()
		if state == StateClosed || state == StateConnected {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
		err := m.cfg.Connect(ctx)
		cancel()

		if err == nil {
			m.backoff.Reset()
			m.setState(StateConnected)
			m.mu.RLock()
			onConnected := m.onConnected
			m.mu.RUnlock()
			if onConnected != nil {
				onConnected()
			}
			return
		}
	}
}

// setState transitions the state, logs it, and notifies the callback.
func (m *Manager) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState {
		m.mu.Unlock()
		return
	}
	m.state = newState
	handler := m.onStateChange
	m.mu.Unlock()

	m.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		DeviceID:  m.cfg.DeviceID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})
	if handler != nil {
		handler(oldState, newState)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for a successful connect.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for link loss.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback for reconnection attempts.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// BackoffAttempts returns the reconnection attempts since the last success.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
