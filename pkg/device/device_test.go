package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuya-local/tuyable-go/internal/simulator"
	"github.com/tuya-local/tuyable-go/pkg/datapoint"
	"github.com/tuya-local/tuyable-go/pkg/session"
)

var testLocalKey = []byte("0123456789abcdef")

// fixture wires simulator -> session -> facade for the Fingerbot product.
type fixture struct {
	sim    *simulator.Device
	schema *datapoint.Schema
	sess   *session.Session
	dev    *Device
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	schema, ok := FingerbotSchema("yrnk7mnn")
	require.True(t, ok)

	sim, err := simulator.New(simulator.Config{
		DeviceID: "bf1234567890abcdtest",
		UUID:     "uuid1234567890ab",
		LocalKey: testLocalKey,
		Schema:   schema,
	})
	require.NoError(t, err)

	s, err := session.New(session.Config{
		DeviceID:       "bf1234567890abcdtest",
		UUID:           "uuid1234567890ab",
		LocalKey:       testLocalKey,
		Transport:      sim,
		RequestTimeout: 250 * time.Millisecond,
	})
	require.NoError(t, err)

	product, ok := LookupProduct("yrnk7mnn")
	require.True(t, ok)

	dev, err := New(Config{
		ID:      "bf1234567890abcdtest",
		Schema:  schema,
		Link:    s,
		Product: product,
	})
	require.NoError(t, err)
	return &fixture{sim: sim, schema: schema, sess: s, dev: dev}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectPrimesCache(t *testing.T) {
	f := newFixture(t)
	f.sim.SetDatapoint(12, datapoint.NewInt(87))
	f.sim.SetDatapoint(2, datapoint.NewBool(false))

	require.NoError(t, f.dev.Connect(context.Background()))
	waitFor(t, func() bool {
		_, ok := f.dev.Datapoint(12)
		return ok
	})

	level, err := f.dev.BatteryPercent()
	require.NoError(t, err)
	assert.Equal(t, 87, level)
	assert.False(t, f.dev.LastReport().IsZero())
	assert.Equal(t, session.StateReady, f.dev.State())
}

func TestWriteConfirmedByReport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.Connect(context.Background()))

	type change struct {
		id    uint8
		value datapoint.Value
	}
	changes := make(chan change, 8)
	remove := f.dev.OnChange(func(id uint8, v datapoint.Value, _ time.Time) {
		changes <- change{id, v}
	})
	defer remove()

	require.NoError(t, f.dev.Write(context.Background(), 2, datapoint.NewBool(true)))

	select {
	case c := <-changes:
		assert.Equal(t, uint8(2), c.id)
		b, ok := c.value.Bool()
		assert.True(t, ok)
		assert.True(t, b)
	case <-time.After(time.Second):
		t.Fatal("confirm report never reached the listener")
	}

	v, ok := f.dev.Datapoint(2)
	require.True(t, ok)
	b, _ := v.Bool()
	assert.True(t, b)
}

func TestListenerRemoval(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.Connect(context.Background()))

	var mu sync.Mutex
	calls := 0
	remove := f.dev.OnChange(func(uint8, datapoint.Value, time.Time) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	remove()

	require.NoError(t, f.dev.Write(context.Background(), 2, datapoint.NewBool(true)))
	waitFor(t, func() bool {
		_, ok := f.dev.Datapoint(2)
		return ok
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestBadRecordDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)

	// One good record, one enum index past the symbol table, one good
	// record after it. The bad one is skipped, the others land.
	f.dev.handlePush(session.Push{Records: []datapoint.Record{
		{ID: 12, WireType: datapoint.TypeValue, Data: []byte{0, 0, 0, 55}},
		{ID: 8, WireType: datapoint.TypeEnum, Data: []byte{7}},
		{ID: 2, WireType: datapoint.TypeBool, Data: []byte{1}},
	}})

	level, err := f.dev.BatteryPercent()
	require.NoError(t, err)
	assert.Equal(t, 55, level)

	_, ok := f.dev.Datapoint(8)
	assert.False(t, ok, "undecodable record must not land in the cache")

	v, ok := f.dev.Datapoint(2)
	require.True(t, ok)
	b, _ := v.Bool()
	assert.True(t, b)
}

func TestUnknownDatapointCachedOpaque(t *testing.T) {
	f := newFixture(t)
	f.dev.handlePush(session.Push{Records: []datapoint.Record{
		{ID: 200, WireType: datapoint.TypeRaw, Data: []byte{0xDE, 0xAD}},
	}})

	v, ok := f.dev.Datapoint(200)
	require.True(t, ok)
	assert.True(t, v.IsOpaque())
}

func TestProgramTextRoundTrip(t *testing.T) {
	f := newFixture(t)

	// Seed the simulator with a device-shaped program payload: header,
	// step count, then {position, duration} records.
	raw := []byte{0xAA, 0xBB, 0xCC, 2, 50, 0, 3, 100, 0, 0}
	seeded, err := f.schema.Decode(121, datapoint.TypeRaw, raw)
	require.NoError(t, err)
	f.sim.SetDatapoint(121, seeded)

	require.NoError(t, f.dev.Connect(context.Background()))
	waitFor(t, func() bool {
		_, ok := f.dev.Datapoint(121)
		return ok
	})

	text, err := f.dev.ProgramText()
	require.NoError(t, err)
	assert.Equal(t, "50/3;100", text)

	require.NoError(t, f.dev.SetProgramText(context.Background(), "20/5;80"))
	writes := f.sim.Writes(121)
	require.Len(t, writes, 1)
	steps, ok := writes[0].Program()
	require.True(t, ok)
	assert.Equal(t, []datapoint.ProgramStep{{Position: 20, Duration: 5}, {Position: 80, Duration: 0}}, steps)
}

func TestSetProgramTextRejectsBadGrammar(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.Connect(context.Background()))

	err := f.dev.SetProgramText(context.Background(), "150/3")
	assert.ErrorIs(t, err, datapoint.ErrBadProgramText)
	assert.Empty(t, f.sim.Writes(121))
}

func TestProgramHelpersRequireCapability(t *testing.T) {
	f := newFixture(t)
	noProgram, err := New(Config{
		ID:      "bf1234567890abcdtest",
		Schema:  f.schema,
		Link:    f.sess,
		Product: &ProductInfo{Name: "CO2 Detector", Category: "co2bj"},
	})
	require.NoError(t, err)

	_, err = noProgram.ProgramText()
	assert.ErrorIs(t, err, ErrNoProduct)
}

func TestCoverPositionScaling(t *testing.T) {
	assert.Equal(t, 100, ScalePosition(0, true))
	assert.Equal(t, 0, ScalePosition(100, true))
	assert.Equal(t, 30, ScalePosition(70, true))
	assert.Equal(t, 70, ScalePosition(70, false))
	assert.Equal(t, 100, ScalePosition(140, false), "out-of-range device values clamp")

	assert.Equal(t, int32(70), UnscalePosition(30, true))
	assert.Equal(t, int32(30), UnscalePosition(30, false))
	assert.Equal(t, int32(0), UnscalePosition(130, true))
}

func TestCoverFacade(t *testing.T) {
	schema := datapoint.NewSchema("coverprod", "cl", []datapoint.Def{
		{ID: 2, Name: "position", Kind: datapoint.KindValue},
	})
	sim, err := simulator.New(simulator.Config{
		DeviceID: "bfcover0000000000001",
		UUID:     "uuidcover0000000",
		LocalKey: testLocalKey,
		Schema:   schema,
	})
	require.NoError(t, err)
	s, err := session.New(session.Config{
		DeviceID:       "bfcover0000000000001",
		UUID:           "uuidcover0000000",
		LocalKey:       testLocalKey,
		Transport:      sim,
		RequestTimeout: 250 * time.Millisecond,
	})
	require.NoError(t, err)
	dev, err := New(Config{
		ID:     "bfcover0000000000001",
		Schema: schema,
		Link:   s,
		Product: &ProductInfo{
			Name:     "Curtain",
			Category: "cl",
			Cover:    &CoverInfo{Position: 2, Inverted: true},
		},
	})
	require.NoError(t, err)

	sim.SetDatapoint(2, datapoint.NewInt(70))
	require.NoError(t, dev.Connect(context.Background()))
	waitFor(t, func() bool {
		_, ok := dev.Datapoint(2)
		return ok
	})

	pos, err := dev.CoverPosition()
	require.NoError(t, err)
	assert.Equal(t, 30, pos)

	require.NoError(t, dev.SetCoverPosition(context.Background(), 80))
	writes := sim.Writes(2)
	require.Len(t, writes, 1)
	v, _ := writes[0].Int()
	assert.Equal(t, int32(20), v)
}

func TestLookupProduct(t *testing.T) {
	info, ok := LookupProduct("yrnk7mnn")
	require.True(t, ok)
	assert.Equal(t, "Fingerbot", info.Name)
	assert.Equal(t, "szjqr", info.Category)
	require.NotNil(t, info.Fingerbot)
	assert.Equal(t, uint8(121), info.Fingerbot.Program)

	plus, ok := LookupProduct("blliqpsj")
	require.True(t, ok)
	assert.Equal(t, uint8(17), plus.Fingerbot.ManualControl)

	_, ok = LookupProduct("nope")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	f1 := newFixture(t)
	r := NewRegistry()

	require.NoError(t, r.Add(f1.dev))
	assert.ErrorIs(t, r.Add(f1.dev), ErrDuplicateDevice)

	got, ok := r.Get(f1.dev.ID())
	require.True(t, ok)
	assert.Same(t, f1.dev, got)
	assert.Equal(t, []string{f1.dev.ID()}, r.IDs())

	require.NoError(t, r.Remove(f1.dev.ID()))
	require.NoError(t, r.Remove(f1.dev.ID()), "removing twice is a no-op")
	_, ok = r.Get(f1.dev.ID())
	assert.False(t, ok)

	f2 := newFixture(t)
	require.NoError(t, r.Add(f2.dev))
	require.NoError(t, r.Close())
	assert.Empty(t, r.IDs())
}
