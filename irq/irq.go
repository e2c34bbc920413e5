// Package irq routes edge interrupts from bound lines to registered
// handlers, one handler per interrupt number. A source line is masked for
// the duration of its handler, so a handler is never invoked concurrently
// with itself.
package irq

import (
	"sync"
	"sync/atomic"

	"buttonmon-go/errcode"
	"buttonmon-go/gpio"
)

// Trigger is the edge mask a handler is registered for.
type Trigger uint8

const (
	TriggerRising Trigger = 1 << iota
	TriggerFalling
)

const TriggerBoth = TriggerRising | TriggerFalling

// Edge converts the mask to the line-level edge selection.
func (t Trigger) Edge() gpio.Edge {
	switch t {
	case TriggerRising:
		return gpio.EdgeRising
	case TriggerFalling:
		return gpio.EdgeFalling
	case TriggerBoth:
		return gpio.EdgeBoth
	default:
		return gpio.EdgeNone
	}
}

// Outcome is the handler's report: Handled, or None for a fire the handler
// did not recognise.
type Outcome uint8

const (
	None Outcome = iota
	Handled
)

// Handler runs in interrupt context. It must be quick and must not block.
type Handler func() Outcome

// Source resolves an interrupt number to the line it is routed from.
type Source interface {
	LineForIRQ(irqN int) (gpio.IRQLine, bool)
}

type entry struct {
	label string
	h     Handler
	mask  Trigger
	line  gpio.IRQLine

	run     sync.Mutex // held while the handler executes: the source is masked
	handled uint32
}

// Controller is the interrupt registry and dispatcher.
type Controller struct {
	src Source

	mu      sync.Mutex
	entries map[int]*entry

	spurious uint32
}

func NewController(src Source) *Controller {
	return &Controller{src: src, entries: map[int]*entry{}}
}

// Register attaches h to interrupt irqN for the edges in mask. The label is
// kept for diagnostics (the /proc/interrupts name).
func (c *Controller) Register(irqN int, h Handler, mask Trigger, label string) error {
	if mask == 0 {
		return errcode.BadTrigger
	}
	if h == nil {
		return &errcode.E{C: errcode.Error, Op: "irq.Register", Msg: "nil handler"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[irqN]; ok {
		return &errcode.E{C: errcode.IRQInUse, Op: "irq.Register", Msg: "claimed by " + cur.label}
	}
	line, ok := c.src.LineForIRQ(irqN)
	if !ok {
		return &errcode.E{C: errcode.UnknownLine, Op: "irq.Register"}
	}

	e := &entry{label: label, h: h, mask: mask, line: line}
	if err := line.SetIRQ(mask.Edge(), func() { c.dispatch(e) }); err != nil {
		return err
	}
	c.entries[irqN] = e
	return nil
}

// Unregister detaches the handler for irqN and waits for any in-flight
// dispatch to finish. It is idempotent.
func (c *Controller) Unregister(irqN int) {
	c.mu.Lock()
	e, ok := c.entries[irqN]
	if ok {
		delete(c.entries, irqN)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	_ = e.line.ClearIRQ()
	// Drain: once we hold run, no handler invocation is in progress.
	e.run.Lock()
	e.run.Unlock() //nolint:staticcheck // empty critical section is the drain
}

func (c *Controller) dispatch(e *entry) {
	e.run.Lock()
	defer e.run.Unlock()
	if e.h() == Handled {
		atomic.AddUint32(&e.handled, 1)
	}
}

// Fire injects an interrupt, as simulation or a chained controller would.
// An unclaimed number counts as spurious and reports None.
func (c *Controller) Fire(irqN int) Outcome {
	c.mu.Lock()
	e := c.entries[irqN]
	c.mu.Unlock()
	if e == nil {
		atomic.AddUint32(&c.spurious, 1)
		return None
	}
	c.dispatch(e)
	return Handled
}

// Registered reports the label attached to irqN, if any.
func (c *Controller) Registered(irqN int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[irqN]
	if !ok {
		return "", false
	}
	return e.label, true
}

// Handled returns the number of dispatches irqN's handler reported handled.
func (c *Controller) Handled(irqN int) uint32 {
	c.mu.Lock()
	e := c.entries[irqN]
	c.mu.Unlock()
	if e == nil {
		return 0
	}
	return atomic.LoadUint32(&e.handled)
}

// Spurious returns the count of fires on unclaimed interrupt numbers.
func (c *Controller) Spurious() uint32 { return atomic.LoadUint32(&c.spurious) }
