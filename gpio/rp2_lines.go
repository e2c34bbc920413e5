//go:build rp2040 || rp2350

package gpio

import (
	"machine"
	"sync"

	"buttonmon-go/errcode"
)

// RP2 GPIO interrupt numbers share a single NVIC line; we keep the
// conventional per-bank offset so MapIRQ stays injective per pin.
const rp2IRQBase = 13

// RP2Factory maps logical numbers directly to machine.Pin(n), matching
// Pico/Pico 2 GP numbering (GP0..GP28).
type RP2Factory struct {
	mu     sync.Mutex
	owners map[int]string
	lines  map[int]*rp2Line
}

func NewRP2Factory() *RP2Factory {
	return &RP2Factory{owners: map[int]string{}, lines: map[int]*rp2Line{}}
}

func (f *RP2Factory) Claim(owner string, n int) (IRQLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > 28 {
		return nil, errcode.UnknownLine
	}
	if cur, ok := f.owners[n]; ok {
		return nil, &errcode.E{C: errcode.LineInUse, Op: "gpio.Claim", Msg: "owned by " + cur}
	}
	f.owners[n] = owner
	l, ok := f.lines[n]
	if !ok {
		l = &rp2Line{p: machine.Pin(n), n: n}
		f.lines[n] = l
	}
	return l, nil
}

func (f *RP2Factory) Release(owner string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.owners[n]; ok && cur == owner {
		delete(f.owners, n)
		if l := f.lines[n]; l != nil {
			_ = l.ClearIRQ()
		}
	}
}

func (f *RP2Factory) MapIRQ(n int) int {
	if n < 0 || n > 28 {
		return -1
	}
	return rp2IRQBase<<5 | n
}

func (f *RP2Factory) LineForIRQ(irqN int) (IRQLine, bool) {
	n := irqN &^ (rp2IRQBase << 5)
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lines[n]
	return l, ok
}

type rp2Line struct {
	p machine.Pin
	n int
}

func (r *rp2Line) Number() int { return r.n }

func (r *rp2Line) ConfigureInput(pull Pull) error {
	var mode machine.PinMode
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Line) Get() bool { return r.p.Get() }

// The RP2 port provides SetInterrupt with PinChange flags.
func (r *rp2Line) SetIRQ(edge Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Line) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e Edge) machine.PinChange {
	switch e {
	case EdgeRising:
		return machine.PinRising
	case EdgeFalling:
		return machine.PinFalling
	case EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}
