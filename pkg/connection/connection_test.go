package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected sequence (without jitter): 1s, 2s, 4s, ..., capped at 3m.
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			64 * time.Second,
			128 * time.Second,
			3 * time.Minute,
			3 * time.Minute, // Should stay at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()
			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = b.Peek()
		}

		// All samples should be between 1s and 1.25s (with jitter).
		for i, s := range samples {
			if s < 1*time.Second || s > time.Duration(float64(1*time.Second)*1.25)+time.Millisecond {
				t.Errorf("Sample %d: %v out of expected range [1s, 1.25s]", i, s)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()

		if b.Attempts() != 0 {
			t.Errorf("Initial Attempts() = %d, want 0", b.Attempts())
		}

		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
			Jitter:     -1, // No jitter for deterministic test
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}

		for i, exp := range expected {
			got := b.Next()
			if got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(Config{Connect: func(ctx context.Context) error { return nil }})
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want StateDisconnected", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		connectCalled := false
		m := NewManager(Config{Connect: func(ctx context.Context) error {
			connectCalled = true
			return nil
		}})
		defer m.Close()

		var connectedCalled bool
		m.OnConnected(func() {
			connectedCalled = true
		})

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		if !connectCalled {
			t.Error("Connect function was not called")
		}
		if !connectedCalled {
			t.Error("OnConnected callback was not called")
		}
		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
	})

	t.Run("FailedConnect", func(t *testing.T) {
		expectedErr := errors.New("handshake failed")
		m := NewManager(Config{Connect: func(ctx context.Context) error {
			return expectedErr
		}})
		defer m.Close()

		if err := m.Connect(context.Background()); err != expectedErr {
			t.Errorf("Connect() error = %v, want %v", err, expectedErr)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		m := NewManager(Config{Connect: func(ctx context.Context) error { return nil }})
		defer m.Close()

		m.Connect(context.Background())

		if err := m.Connect(context.Background()); err != ErrAlreadyConnected {
			t.Errorf("Second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("ConnectAfterClose", func(t *testing.T) {
		m := NewManager(Config{Connect: func(ctx context.Context) error { return nil }})
		m.Close()

		if err := m.Connect(context.Background()); err != ErrManagerClosed {
			t.Errorf("Connect() after Close error = %v, want ErrManagerClosed", err)
		}
	})

	t.Run("ConnectionLost", func(t *testing.T) {
		m := NewManager(Config{Connect: func(ctx context.Context) error { return nil }})
		m.SetAutoReconnect(false)
		defer m.Close()

		m.Connect(context.Background())

		var disconnectedCalled bool
		m.OnDisconnected(func() {
			disconnectedCalled = true
		})

		m.NotifyConnectionLost()

		if !disconnectedCalled {
			t.Error("OnDisconnected callback was not called")
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(Config{Connect: func(ctx context.Context) error { return nil }})
		m.SetAutoReconnect(false)
		defer m.Close()

		var transitions []struct{ old, new State }
		m.OnStateChange(func(old, new State) {
			transitions = append(transitions, struct{ old, new State }{old, new})
		})

		m.Connect(context.Background())
		m.NotifyConnectionLost()

		expected := []struct{ old, new State }{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}

		if len(transitions) != len(expected) {
			t.Fatalf("Got %d transitions, want %d", len(transitions), len(expected))
		}

		for i, exp := range expected {
			if transitions[i].old != exp.old || transitions[i].new != exp.new {
				t.Errorf("Transition %d: got %v to %v, want %v to %v",
					i, transitions[i].old, transitions[i].new, exp.old, exp.new)
			}
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("AutoReconnectOnLoss", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManager(Config{
			Connect: func(ctx context.Context) error {
				connectCount.Add(1)
				return nil
			},
			Backoff: BackoffConfig{
				Initial: 20 * time.Millisecond,
				Max:     100 * time.Millisecond,
				Jitter:  -1,
			},
		})
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Initial Connect() error = %v", err)
		}

		m.NotifyConnectionLost()

		deadline := time.Now().Add(2 * time.Second)
		for m.State() != StateConnected && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected after reconnect", m.State())
		}
		if connectCount.Load() < 2 {
			t.Errorf("Connect was only called %d times, want at least 2", connectCount.Load())
		}
	})

	t.Run("BackoffOnFailure", func(t *testing.T) {
		var connectCount atomic.Int32
		var mu sync.Mutex
		var attempts []time.Time

		m := NewManager(Config{
			Connect: func(ctx context.Context) error {
				mu.Lock()
				attempts = append(attempts, time.Now())
				mu.Unlock()

				if connectCount.Add(1) < 3 {
					return errors.New("device not in range")
				}
				return nil // Third attempt succeeds
			},
			Backoff: BackoffConfig{
				Initial:    50 * time.Millisecond,
				Max:        200 * time.Millisecond,
				Multiplier: 2.0,
				Jitter:     -1,
			},
		})

		m.StartReconnectLoop()
		defer m.Close()

		// Start in reconnecting state.
		m.mu.Lock()
		m.state = StateReconnecting
		m.mu.Unlock()
		m.triggerReconnect()

		deadline := time.Now().Add(2 * time.Second)
		for m.State() != StateConnected && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		mu.Lock()
		attemptsCopy := make([]time.Time, len(attempts))
		copy(attemptsCopy, attempts)
		mu.Unlock()

		if len(attemptsCopy) < 3 {
			t.Fatalf("Expected at least 3 attempts, got %d", len(attemptsCopy))
		}

		// The first retry waits at least the initial backoff.
		if delay := attemptsCopy[1].Sub(attemptsCopy[0]); delay < 30*time.Millisecond {
			t.Errorf("First delay = %v, expected at least 30ms", delay)
		}

		if m.State() != StateConnected {
			t.Errorf("Final state = %v, want StateConnected", m.State())
		}
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManager(Config{Connect: func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}})
		m.SetAutoReconnect(false)
		m.StartReconnectLoop()
		defer m.Close()

		m.Connect(context.Background())
		m.NotifyConnectionLost()

		time.Sleep(100 * time.Millisecond)

		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected (no auto-reconnect)", m.State())
		}
		if connectCount.Load() != 1 {
			t.Errorf("Connect called %d times, want 1 (no reconnection)", connectCount.Load())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
