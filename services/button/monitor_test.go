package button

import (
	"log/slog"
	"testing"
	"time"

	"buttonmon-go/attrs"
	"buttonmon-go/bus"
	"buttonmon-go/errcode"
	"buttonmon-go/gpio"
	"buttonmon-go/irq"
	"buttonmon-go/types"

	"github.com/stretchr/testify/require"
)

type rig struct {
	bus     *bus.Bus
	lines   *gpio.SimFactory
	irqc    *irq.Controller
	surface *attrs.Surface
	client  *bus.Connection
	mon     *Monitor
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	b := bus.NewBus(64)
	f := gpio.NewSimFactory(63)
	c := irq.NewController(f)
	s := attrs.NewSurface(b.NewConnection("surface"), slog.Default())
	m := New(cfg, Deps{
		Lines:   f,
		IRQ:     c,
		Surface: s,
		Conn:    b.NewConnection("button"),
		Log:     slog.Default(),
	})
	return &rig{bus: b, lines: f, irqc: c, surface: s, client: b.NewConnection("client"), mon: m}
}

// press drives one full press/release cycle on the monitor's line.
func (r *rig) press(t *testing.T, pin int) {
	t.Helper()
	l, ok := r.lines.Line(pin)
	require.True(t, ok)
	l.Drive(false)
	l.Drive(true)
}

func (r *rig) show(t *testing.T, group, attr string) string {
	t.Helper()
	rt := r.client.NextReplyTopic()
	sub := r.client.Subscribe(rt)
	defer r.client.Unsubscribe(sub)
	r.client.Publish(&bus.Message{Topic: bus.T("sys", group, attr, "show"), ReplyTo: rt})
	select {
	case m := <-sub.Channel():
		return m.Payload.(types.AttrRead).Text
	case <-time.After(time.Second):
		t.Fatalf("no show reply for %s/%s", group, attr)
		return ""
	}
}

func (r *rig) store(t *testing.T, group, attr, text string) types.AttrWriteResult {
	t.Helper()
	rt := r.client.NextReplyTopic()
	sub := r.client.Subscribe(rt)
	defer r.client.Unsubscribe(sub)
	r.client.Publish(&bus.Message{
		Topic:   bus.T("sys", group, attr, "store"),
		Payload: types.AttrWrite{Text: text},
		ReplyTo: rt,
	})
	select {
	case m := <-sub.Channel():
		return m.Payload.(types.AttrWriteResult)
	case <-time.After(time.Second):
		t.Fatalf("no store reply for %s/%s", group, attr)
		return types.AttrWriteResult{}
	}
}

func TestStartPublishesProjections(t *testing.T) {
	r := newRig(t, Config{})

	// Pulled-up button: line is high before the monitor binds it.
	l, _ := r.lines.Line(DefaultPin)
	l.Drive(true)

	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	require.Equal(t, PhaseRunning, r.mon.Phase())
	require.Equal(t, r.lines.MapIRQ(DefaultPin), r.mon.IRQNumber())
	require.Equal(t, 1, r.mon.Level(), "initial level sampled at bind time")
	require.Zero(t, r.mon.Presses())

	require.Equal(t, "0\n", r.show(t, DefaultGroup, AttrNumberPresses))
	require.Equal(t, "1\n", r.show(t, DefaultGroup, AttrGPIOState))

	label, ok := r.irqc.Registered(r.mon.IRQNumber())
	require.True(t, ok)
	require.Equal(t, irqLabel, label)
}

func TestPressCycleCounts(t *testing.T) {
	r := newRig(t, Config{})
	l, _ := r.lines.Line(DefaultPin)
	l.Drive(true)

	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	for i := 0; i < 3; i++ {
		r.press(t, DefaultPin)
	}

	level, presses := r.mon.Snapshot()
	require.Equal(t, 1, level, "released after the last cycle")
	require.Equal(t, uint32(3), presses)

	require.Equal(t, "3\n", r.show(t, DefaultGroup, AttrNumberPresses))
	// Both edges were dispatched, only the falling ones counted.
	require.Equal(t, uint32(6), r.irqc.Handled(r.mon.IRQNumber()))
}

func TestStoreThenEdgeResumesFromStoredValue(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	res := r.store(t, DefaultGroup, AttrNumberPresses, "7")
	require.Equal(t, types.AttrWriteResult{OK: true, N: 1}, res)
	require.Equal(t, uint32(7), r.mon.Presses())

	l, _ := r.lines.Line(DefaultPin)
	l.Drive(true)
	l.Drive(false)
	require.Equal(t, uint32(8), r.mon.Presses())
}

func TestStoreBadInputReported(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	res := r.store(t, DefaultGroup, AttrNumberPresses, "bogus")
	require.Equal(t, "invalid_number", res.Error)
	require.False(t, res.OK)
	require.Zero(t, r.mon.Presses(), "failed store changed nothing")
}

func TestReadOnlyAttrsRejectStore(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	for _, attr := range []string{AttrIRQNumber, AttrGPIOState} {
		res := r.store(t, DefaultGroup, attr, "5")
		require.Equal(t, "read_only", res.Error, attr)
	}
}

func TestEdgeEventPublished(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	sub := r.client.Subscribe(bus.T("button", DefaultGroup, "event"))
	defer r.client.Unsubscribe(sub)

	l, _ := r.lines.Line(DefaultPin)
	l.Drive(true)

	select {
	case m := <-sub.Channel():
		ev := m.Payload.(types.ButtonEvent)
		require.Equal(t, 1, ev.Level)
		require.Zero(t, ev.Presses, "rising edge does not count")
	case <-time.After(time.Second):
		t.Fatal("no edge event")
	}
}

func TestStopReleasesEverythingAndIsIdempotent(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	irqN := r.mon.IRQNumber()

	r.mon.Stop()
	r.mon.Stop() // second call is a no-op
	require.Equal(t, PhaseStopped, r.mon.Phase())

	_, claimed := r.lines.Owner(DefaultPin)
	require.False(t, claimed, "line released")
	_, registered := r.irqc.Registered(irqN)
	require.False(t, registered, "handler unregistered")

	// A fire after teardown is spurious, not a dispatch into freed state.
	require.Equal(t, irq.None, r.irqc.Fire(irqN))
	require.Equal(t, uint32(1), r.irqc.Spurious())

	// Retained attribute values are gone and the group name is free.
	sub := r.client.Subscribe(bus.T("sys", DefaultGroup, AttrGPIOState, "value"))
	select {
	case m := <-sub.Channel():
		t.Fatalf("retained value survived stop: %v", m.Payload)
	case <-time.After(20 * time.Millisecond):
	}
	g, err := r.surface.Publish(DefaultGroup, []attrs.Attribute{{
		Name: "x", Mode: attrs.ModeRO, Show: func() string { return "\n" },
	}})
	require.NoError(t, err)
	g.Unpublish()
}

func TestDoubleStartRejected(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	err := r.mon.Start()
	require.Equal(t, errcode.AlreadyRunning, errcode.Of(err))
}

func TestStartAfterStopRejectedAsStopped(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.mon.Start())
	r.mon.Stop()

	err := r.mon.Start()
	require.Equal(t, errcode.NotRunning, errcode.Of(err))
	require.Equal(t, PhaseStopped, r.mon.Phase(), "rejected start leaves the phase terminal")
}

func TestStartRollsBackWhenLineClaimed(t *testing.T) {
	r := newRig(t, Config{})
	_, err := r.lines.Claim("someone-else", DefaultPin)
	require.NoError(t, err)

	err = r.mon.Start()
	require.Equal(t, errcode.LineInUse, errcode.Of(err))
	require.Equal(t, PhaseUnstarted, r.mon.Phase())

	// The surface published before the claim must be gone again.
	g, err := r.surface.Publish(DefaultGroup, []attrs.Attribute{{
		Name: "x", Mode: attrs.ModeRO, Show: func() string { return "\n" },
	}})
	require.NoError(t, err)
	g.Unpublish()
}

func TestStartRollsBackWhenIRQClaimed(t *testing.T) {
	r := newRig(t, Config{})

	// Pre-claim the interrupt number the monitor will map to.
	_, err := r.lines.Claim("squatter", DefaultPin)
	require.NoError(t, err)
	irqN := r.lines.MapIRQ(DefaultPin)
	require.NoError(t, r.irqc.Register(irqN, func() irq.Outcome { return irq.Handled }, irq.TriggerBoth, "squatter"))
	r.lines.Release("squatter", DefaultPin)

	err = r.mon.Start()
	require.Equal(t, errcode.IRQInUse, errcode.Of(err))
	require.Equal(t, PhaseUnstarted, r.mon.Phase())

	_, claimed := r.lines.Owner(DefaultPin)
	require.False(t, claimed, "line released on rollback")

	g, err := r.surface.Publish(DefaultGroup, []attrs.Attribute{{
		Name: "x", Mode: attrs.ModeRO, Show: func() string { return "\n" },
	}})
	require.NoError(t, err)
	g.Unpublish()
}

func TestStartRollsBackWhenGroupTaken(t *testing.T) {
	r := newRig(t, Config{})
	g, err := r.surface.Publish(DefaultGroup, []attrs.Attribute{{
		Name: "x", Mode: attrs.ModeRO, Show: func() string { return "\n" },
	}})
	require.NoError(t, err)
	defer g.Unpublish()

	err = r.mon.Start()
	require.Equal(t, errcode.SurfaceExists, errcode.Of(err))
	require.Equal(t, PhaseUnstarted, r.mon.Phase())
	_, claimed := r.lines.Owner(DefaultPin)
	require.False(t, claimed, "no line claimed when the surface fails first")
}

func TestFromConfigDefaults(t *testing.T) {
	cfg := FromConfig(types.MonitorConfig{})
	require.Equal(t, DefaultName, cfg.Name)
	require.Equal(t, DefaultPin, cfg.Pin)
	require.Equal(t, DefaultGroup, cfg.Group)

	cfg = FromConfig(types.MonitorConfig{Name: "lab", Pin: 12, Group: "gpio12", Pull: "up"})
	require.Equal(t, Config{Name: "lab", Pin: 12, Group: "gpio12", Pull: gpio.PullUp}, cfg)
}
