package device

import (
	"errors"
	"sync"
)

// Registry errors.
var (
	// ErrDuplicateDevice indicates the device ID is already registered.
	ErrDuplicateDevice = errors.New("device already registered")

	// ErrUnknownDevice indicates no device is registered under the ID.
	ErrUnknownDevice = errors.New("unknown device")
)

// Registry owns the devices of one controller. Teardown disconnects the
// device's session and is idempotent.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Add registers a device under its ID.
func (r *Registry) Add(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[d.ID()]; exists {
		return ErrDuplicateDevice
	}
	r.devices[d.ID()] = d
	return nil
}

// Get returns the device registered under the ID.
func (r *Registry) Get(id string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	return d, ok
}

// IDs returns the registered device IDs.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	return ids
}

// Remove tears a device down and drops it from the registry. Removing an
// unknown ID is a no-op.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	d, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return d.Disconnect()
}

// Close tears all devices down. The first disconnect error is returned;
// teardown continues regardless.
func (r *Registry) Close() error {
	r.mu.Lock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.devices = make(map[string]*Device)
	r.mu.Unlock()

	var firstErr error
	for _, d := range devices {
		if err := d.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
