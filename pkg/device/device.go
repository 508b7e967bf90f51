// Package device provides the typed facade over a session: a datapoint
// cache kept current by device reports, change listeners, and per-product
// helpers such as fingerbot program editing and cover position scaling.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/log"
	"github.com/tuya-local/tuyable-go/pkg/session"
)

// Device errors.
var (
	// ErrNoSuchDatapoint indicates the datapoint has no cached value.
	ErrNoSuchDatapoint = errors.New("no such datapoint")

	// ErrNotAProgram indicates the datapoint does not hold a step program.
	ErrNotAProgram = errors.New("datapoint is not a program")

	// ErrNoProduct indicates the device has no catalog entry for the
	// requested helper.
	ErrNoProduct = errors.New("product capability not available")
)

// Link is the session surface the facade drives. *session.Session
// implements it.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect() error
	State() session.State
	Info() session.DeviceInfo
	OnPush(session.PushHandler)
	OnStateChange(session.StateChangeHandler)
	SendDatapoints(ctx context.Context, records []datapoint.Record) error
	RequestStatus(ctx context.Context) error
	Unbind(ctx context.Context) error
	Reset(ctx context.Context) error
}

// ChangeHandler receives datapoint changes. reported is the device-supplied
// report time for timestamped pushes, zero otherwise.
type ChangeHandler func(id uint8, value datapoint.Value, reported time.Time)

// Config configures a device facade.
type Config struct {
	// ID is the cloud device identifier.
	ID string

	// Schema declares the device's datapoints.
	Schema *datapoint.Schema

	// Link is the session carrying the traffic.
	Link Link

	// Product is the catalog entry, nil for uncataloged devices.
	Product *ProductInfo

	// Logger receives datapoint events. Defaults to the no-op logger.
	Logger log.Logger
}

// Device is the typed facade over one session.
type Device struct {
	mu sync.Mutex

	cfg   Config
	cache map[uint8]datapoint.Value

	listeners    map[int]ChangeHandler
	nextListener int

	lastReport time.Time
}

// New creates a device facade and wires it to the link's push stream.
func New(cfg Config) (*Device, error) {
	if cfg.Link == nil {
		return nil, fmt.Errorf("device requires a link")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("device requires a schema")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger{}
	}
	d := &Device{
		cfg:       cfg,
		cache:     make(map[uint8]datapoint.Value),
		listeners: make(map[int]ChangeHandler),
	}
	cfg.Link.OnPush(d.handlePush)
	return d, nil
}

// ID returns the device identifier.
func (d *Device) ID() string {
	return d.cfg.ID
}

// Product returns the catalog entry, nil for uncataloged devices.
func (d *Device) Product() *ProductInfo {
	return d.cfg.Product
}

// Connect establishes the session. The handshake's status probe primes the
// datapoint cache.
func (d *Device) Connect(ctx context.Context) error {
	return d.cfg.Link.Connect(ctx)
}

// Disconnect tears the session down. The cache is kept; values go stale,
// not away.
func (d *Device) Disconnect() error {
	return d.cfg.Link.Disconnect()
}

// State returns the session state.
func (d *Device) State() session.State {
	return d.cfg.Link.State()
}

// Info returns what the device reported during the handshake.
func (d *Device) Info() session.DeviceInfo {
	return d.cfg.Link.Info()
}

// Datapoint returns the cached value of a datapoint.
func (d *Device) Datapoint(id uint8) (datapoint.Value, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.cache[id]
	return v, ok
}

// Datapoints returns a snapshot of all cached values.
func (d *Device) Datapoints() map[uint8]datapoint.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint8]datapoint.Value, len(d.cache))
	for id, v := range d.cache {
		out[id] = v
	}
	return out
}

// LastReport returns when the device last reported state.
func (d *Device) LastReport() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReport
}

// Refresh asks the device for a full state report. The report arrives as a
// push and lands in the cache.
func (d *Device) Refresh(ctx context.Context) error {
	return d.cfg.Link.RequestStatus(ctx)
}

// Write sends one typed datapoint value to the device. The cache is not
// updated here; the device confirms the write with a report.
func (d *Device) Write(ctx context.Context, id uint8, v datapoint.Value) error {
	return d.WriteBatch(ctx, datapoint.Update{ID: id, Value: v})
}

// WriteBatch sends several datapoint values in one frame.
func (d *Device) WriteBatch(ctx context.Context, updates ...datapoint.Update) error {
	var records []datapoint.Record
	for _, u := range updates {
		wireType, raw, err := d.cfg.Schema.Encode(u.ID, u.Value)
		if err != nil {
			return err
		}
		records = append(records, datapoint.Record{ID: u.ID, WireType: wireType, Data: raw})
	}
	return d.cfg.Link.SendDatapoints(ctx, records)
}

// OnChange registers a change listener and returns its remove function.
func (d *Device) OnChange(handler ChangeHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = handler
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Unbind asks the device to forget its binding.
func (d *Device) Unbind(ctx context.Context) error {
	return d.cfg.Link.Unbind(ctx)
}

// Reset asks the device to factory reset.
func (d *Device) Reset(ctx context.Context) error {
	return d.cfg.Link.Reset(ctx)
}

// BatteryPercent returns the cached battery level for products that report
// one.
func (d *Device) BatteryPercent() (int, error) {
	if d.cfg.Product == nil || d.cfg.Product.Battery == 0 {
		return 0, ErrNoProduct
	}
	v, ok := d.Datapoint(d.cfg.Product.Battery)
	if !ok {
		return 0, ErrNoSuchDatapoint
	}
	level, ok := v.Int()
	if !ok {
		return 0, fmt.Errorf("%w: battery dp holds %s", ErrNoSuchDatapoint, v.Type())
	}
	return int(level), nil
}

// ProgramText renders the cached step program as text, e.g. "50/3;100".
func (d *Device) ProgramText() (string, error) {
	fb, err := d.fingerbotProgram()
	if err != nil {
		return "", err
	}
	v, ok := d.Datapoint(fb)
	if !ok {
		return "", ErrNoSuchDatapoint
	}
	steps, ok := v.Program()
	if !ok {
		return "", ErrNotAProgram
	}
	return datapoint.RenderProgramText(steps), nil
}

// SetProgramText parses the textual program grammar and writes the
// resulting steps. The header bytes of the cached program are preserved.
func (d *Device) SetProgramText(ctx context.Context, text string) error {
	fb, err := d.fingerbotProgram()
	if err != nil {
		return err
	}
	steps, err := datapoint.ParseProgramText(text)
	if err != nil {
		return err
	}

	v := datapoint.NewProgram(steps)
	if cached, ok := d.Datapoint(fb); ok && cached.IsProgram() {
		v = cached.WithSteps(steps)
	}
	return d.Write(ctx, fb, v)
}

func (d *Device) fingerbotProgram() (uint8, error) {
	if d.cfg.Product == nil || d.cfg.Product.Fingerbot == nil || d.cfg.Product.Fingerbot.Program == 0 {
		return 0, ErrNoProduct
	}
	return d.cfg.Product.Fingerbot.Program, nil
}

// CoverPosition returns the cached cover position as a 0-100 percentage,
// with the product's inversion applied.
func (d *Device) CoverPosition() (int, error) {
	cover := d.cfg.Product
	if cover == nil || cover.Cover == nil {
		return 0, ErrNoProduct
	}
	id := cover.Cover.CurrentPosition
	if id == 0 {
		id = cover.Cover.Position
	}
	v, ok := d.Datapoint(id)
	if !ok {
		return 0, ErrNoSuchDatapoint
	}
	pos, ok := v.Int()
	if !ok {
		return 0, fmt.Errorf("%w: position dp holds %s", ErrNoSuchDatapoint, v.Type())
	}
	return ScalePosition(pos, cover.Cover.Inverted), nil
}

// SetCoverPosition writes a 0-100 percentage as the cover target position.
func (d *Device) SetCoverPosition(ctx context.Context, percent int) error {
	cover := d.cfg.Product
	if cover == nil || cover.Cover == nil {
		return ErrNoProduct
	}
	value := UnscalePosition(percent, cover.Cover.Inverted)
	return d.Write(ctx, cover.Cover.Position, datapoint.NewInt(value))
}

// handlePush decodes a device report and folds it into the cache. A record
// that fails to decode is logged and skipped; it does not abort the rest of
// the batch.
func (d *Device) handlePush(p session.Push) {
	updates, failures := d.cfg.Schema.DecodeBatch(p.Records)
	for _, f := range failures {
		d.cfg.Logger.Log(log.Event{
			Timestamp: time.Now(),
			Direction: log.DirectionIn,
			Layer:     log.LayerDatapoint,
			Category:  log.CategoryError,
			DeviceID:  d.cfg.ID,
			Error:     &log.ErrorEventData{Layer: log.LayerDatapoint, Message: f.Error()},
		})
	}
	if len(updates) == 0 {
		return
	}

	reported := time.Time{}
	if p.HasTimestamp {
		reported = p.Timestamp
	}

	d.mu.Lock()
	changed := make([]datapoint.Update, 0, len(updates))
	for _, u := range updates {
		if prev, ok := d.cache[u.ID]; ok && prev.Equal(u.Value) {
			continue
		}
		d.cache[u.ID] = u.Value
		changed = append(changed, u)
	}
	d.lastReport = time.Now()
	handlers := make([]ChangeHandler, 0, len(d.listeners))
	for _, h := range d.listeners {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, u := range changed {
		d.cfg.Logger.Log(log.Event{
			Timestamp: time.Now(),
			Direction: log.DirectionIn,
			Layer:     log.LayerDatapoint,
			Category:  log.CategoryMessage,
			DeviceID:  d.cfg.ID,
			Datapoint: &log.DatapointEvent{
				ID:         u.ID,
				Type:       uint8(u.Value.Type()),
				Value:      u.Value.String(),
				FromDevice: true,
			},
		})
		for _, h := range handlers {
			h(u.ID, u.Value, reported)
		}
	}
}
