// Package button monitors a single digital input line: an interrupt handler
// counts presses, and the {irqNumber, gpioState, numberPresses} attributes
// expose the state through a published surface. numberPresses accepts an
// external overwrite.
package button

import (
	"log/slog"
	"strconv"
	"sync"

	"buttonmon-go/attrs"
	"buttonmon-go/bus"
	"buttonmon-go/errcode"
	"buttonmon-go/gpio"
	"buttonmon-go/irq"
	"buttonmon-go/types"
	"buttonmon-go/x/timex"
)

// Attribute names, as published under sys/<group>/.
const (
	AttrNumberPresses = "numberPresses"
	AttrIRQNumber     = "irqNumber"
	AttrGPIOState     = "gpioState"
)

// Defaults matching the original board wiring (P8_16 button on GPIO46).
const (
	DefaultName  = "world"
	DefaultPin   = 46
	DefaultGroup = "gpio46"

	irqLabel = "buttonmon_handler"
)

// Phase is the lifecycle position of the monitor.
type Phase uint8

const (
	PhaseUnstarted Phase = iota
	PhaseSurfacePublished
	PhaseLinePublished
	PhaseHandlerRegistered
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseSurfacePublished:
		return "surface_published"
	case PhaseLinePublished:
		return "line_published"
	case PhaseHandlerRegistered:
		return "handler_registered"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Config struct {
	Name  string // display name for the greeting/farewell logs
	Pin   int
	Group string
	Pull  gpio.Pull
}

// FromConfig fills a Config from the bus document, applying defaults for
// empty fields.
func FromConfig(tc types.MonitorConfig) Config {
	cfg := Config{Name: tc.Name, Pin: tc.Pin, Group: tc.Group, Pull: gpio.ParsePull(tc.Pull)}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Pin == 0 {
		cfg.Pin = DefaultPin
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	return cfg
}

// Deps are the collaborators the monitor drives.
type Deps struct {
	Lines   gpio.LineFactory
	IRQ     *irq.Controller
	Surface *attrs.Surface
	Conn    *bus.Connection // optional; edge events and state go here
	Log     *slog.Logger
}

type edgeEvent struct {
	level   int
	presses uint32
	tsMs    int64
}

// Monitor owns the MonitorState and sequences acquisition and teardown of
// the surface, the line, and the interrupt handler.
type Monitor struct {
	cfg Config
	d   Deps
	st  state

	// Handler → event loop; sends never block the interrupt context.
	evQ chan edgeEvent

	mu    sync.Mutex
	phase Phase
	line  gpio.IRQLine
	group *attrs.Group
	quit  chan struct{}
	done  chan struct{}
}

func New(cfg Config, d Deps) *Monitor {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Pin == 0 {
		cfg.Pin = DefaultPin
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Monitor{
		cfg: cfg,
		d:   d,
		evQ: make(chan edgeEvent, 16),
	}
}

// Start acquires resources in order: publish the attribute group, claim the
// line as input, map it to an interrupt number, register the handler for
// both edges. Any failure rolls back everything acquired so far, so a failed
// start leaves no attributes published and no line bound.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseStopped {
		return &errcode.E{C: errcode.NotRunning, Op: "button.Start", Msg: "stopped is terminal"}
	}
	if m.phase != PhaseUnstarted {
		return &errcode.E{C: errcode.AlreadyRunning, Op: "button.Start", Msg: m.phase.String()}
	}
	m.d.Log.Info("button monitor starting", "name", m.cfg.Name)

	group, err := m.d.Surface.Publish(m.cfg.Group, m.attributes())
	if err != nil {
		m.d.Log.Error("failed to publish attribute group", "group", m.cfg.Group, "err", err)
		return err
	}
	m.group = group
	m.phase = PhaseSurfacePublished

	line, err := m.d.Lines.Claim(m.cfg.Group, m.cfg.Pin)
	if err == nil {
		err = line.ConfigureInput(m.cfg.Pull)
		if err != nil {
			m.d.Lines.Release(m.cfg.Group, m.cfg.Pin)
		}
	}
	if err != nil {
		m.d.Log.Error("failed to bind input line", "pin", m.cfg.Pin, "err", err)
		m.rollback()
		return err
	}
	m.line = line

	level := boolToInt(line.Get())
	irqN := m.d.Lines.MapIRQ(m.cfg.Pin)
	m.st.seed(irqN, level)
	m.phase = PhaseLinePublished
	m.d.Log.Info("button line bound", "pin", m.cfg.Pin, "level", level, "irq", irqN)

	if err := m.d.IRQ.Register(irqN, m.handleIRQ, irq.TriggerBoth, irqLabel); err != nil {
		m.d.Log.Error("interrupt registration failed", "irq", irqN, "err", err)
		m.rollback()
		return err
	}
	m.phase = PhaseHandlerRegistered

	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.eventLoop()
	m.phase = PhaseRunning

	m.publishState("running", "")
	return nil
}

// rollback unwinds a partial acquisition in reverse order. Caller holds mu.
func (m *Monitor) rollback() {
	if m.phase >= PhaseLinePublished && m.line != nil {
		m.d.Lines.Release(m.cfg.Group, m.cfg.Pin)
		m.line = nil
	}
	if m.phase >= PhaseSurfacePublished && m.group != nil {
		m.group.Unpublish()
		m.group = nil
	}
	m.st = state{}
	m.phase = PhaseUnstarted
}

// Stop tears down in the reverse of acquisition order. Collaborator teardown
// never propagates an error; a second Stop is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		m.phase = PhaseStopped
		return
	}

	m.d.Log.Info("button monitor stopping", "presses", m.st.pressCount())

	close(m.quit)
	<-m.done

	m.group.Unpublish()
	m.group = nil

	m.d.IRQ.Unregister(m.st.irqNumber())

	m.d.Lines.Release(m.cfg.Group, m.cfg.Pin)
	m.line = nil

	m.phase = PhaseStopped
	m.publishState("stopped", "")
	m.d.Log.Info("button monitor stopped", "name", m.cfg.Name)
}

// handleIRQ is the single asynchronous entry point. It samples the line
// exactly once, feeds the transition to the state machine, queues an event
// for the loop, and reports handled unconditionally. The controller masks
// the source for the duration, so this never races with itself.
func (m *Monitor) handleIRQ() irq.Outcome {
	level := boolToInt(m.line.Get())
	presses := m.st.observeEdge(level)

	select {
	case m.evQ <- edgeEvent{level: level, presses: presses, tsMs: timex.NowMs()}:
	default:
		// Drop rather than block the interrupt context.
	}
	return irq.Handled
}

// eventLoop publishes edge telemetry outside interrupt context.
func (m *Monitor) eventLoop() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			return
		case ev := <-m.evQ:
			m.d.Log.Debug("button edge", "level", ev.level, "presses", ev.presses)
			m.group.Refresh(AttrGPIOState)
			m.group.Refresh(AttrNumberPresses)
			if m.d.Conn != nil {
				m.d.Conn.Publish(m.d.Conn.NewMessage(
					bus.T("button", m.cfg.Group, "event"),
					types.ButtonEvent{Level: ev.level, Presses: ev.presses, TSms: ev.tsMs},
					false,
				))
			}
		}
	}
}

// attributes builds the published group: the press counter (read-write) and
// the two read-only projections.
func (m *Monitor) attributes() []attrs.Attribute {
	return []attrs.Attribute{
		{
			Name:  AttrNumberPresses,
			Mode:  attrs.ModeRW,
			Show:  func() string { return utoa(m.st.pressCount()) },
			Store: m.st.storePresses,
		},
		{
			Name: AttrIRQNumber,
			Mode: attrs.ModeRO,
			Show: func() string { return itoa(m.st.irqNumber()) },
		},
		{
			Name: AttrGPIOState,
			Mode: attrs.ModeRO,
			Show: func() string { return itoa(m.st.lineLevel()) },
		},
	}
}

func (m *Monitor) publishState(level, errText string) {
	if m.d.Conn == nil {
		return
	}
	m.d.Conn.Publish(m.d.Conn.NewMessage(
		bus.T("button", m.cfg.Group, "state"),
		types.ServiceState{Level: level, Error: errText, TSms: timex.NowMs()},
		true,
	))
}

// ---- projections (read-only views of MonitorState) ----

func (m *Monitor) IRQNumber() int  { return m.st.irqNumber() }
func (m *Monitor) Level() int      { return m.st.lineLevel() }
func (m *Monitor) Presses() uint32 { return m.st.pressCount() }

// Snapshot returns the {level, presses} pair read consistently.
func (m *Monitor) Snapshot() (level int, presses uint32) { return m.st.snapshot() }

func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ---- small helpers ----

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func itoa(v int) string    { return strconv.Itoa(v) + "\n" }
func utoa(v uint32) string { return strconv.FormatUint(uint64(v), 10) + "\n" }
