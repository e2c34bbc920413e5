//go:build !rp2040 && !rp2350

package gpio

import (
	"sync"

	"buttonmon-go/errcode"
)

// simIRQBase offsets line numbers into an interrupt-number space, so tests
// catch code that confuses the two.
const simIRQBase = 160

// SimLine is a host-side line whose level is driven from test or demo code.
// Drive fires the registered ISR when the resulting edge matches the
// configured trigger, the way a pin controller would.
type SimLine struct {
	mu      sync.Mutex
	number  int
	level   bool
	irqEdge Edge
	irqFunc func()
}

func (l *SimLine) Number() int { return l.number }

func (l *SimLine) ConfigureInput(_ Pull) error { return nil }

func (l *SimLine) Get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *SimLine) SetIRQ(edge Edge, handler func()) error {
	l.mu.Lock()
	l.irqEdge = edge
	l.irqFunc = handler
	l.mu.Unlock()
	return nil
}

func (l *SimLine) ClearIRQ() error {
	l.mu.Lock()
	l.irqEdge = EdgeNone
	l.irqFunc = nil
	l.mu.Unlock()
	return nil
}

// Drive sets the line level. When the transition is an edge the ISR is
// configured for, the ISR runs on the caller's goroutine before Drive
// returns, mirroring a masked hardware dispatch.
func (l *SimLine) Drive(level bool) {
	l.mu.Lock()
	old := l.level
	l.level = level
	isr := l.irqFunc
	want := irqWanted(l.irqEdge, edgeFrom(old, level))
	l.mu.Unlock()

	if want && isr != nil {
		isr()
	}
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	if seen == EdgeNone {
		return false
	}
	return cfg == EdgeBoth || cfg == seen
}

// SimFactory owns a set of SimLines and enforces exclusive claims.
// The zero value is not usable; construct with NewSimFactory.
type SimFactory struct {
	mu     sync.Mutex
	maxN   int
	lines  map[int]*SimLine
	owners map[int]string
}

// NewSimFactory allows line numbers 0..maxLine inclusive.
func NewSimFactory(maxLine int) *SimFactory {
	return &SimFactory{
		maxN:   maxLine,
		lines:  map[int]*SimLine{},
		owners: map[int]string{},
	}
}

func (f *SimFactory) Claim(owner string, n int) (IRQLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > f.maxN {
		return nil, errcode.UnknownLine
	}
	if cur, ok := f.owners[n]; ok {
		return nil, &errcode.E{C: errcode.LineInUse, Op: "gpio.Claim", Msg: "owned by " + cur}
	}
	f.owners[n] = owner
	l, ok := f.lines[n]
	if !ok {
		l = &SimLine{number: n}
		f.lines[n] = l
	}
	return l, nil
}

func (f *SimFactory) Release(owner string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.owners[n]; ok && cur == owner {
		delete(f.owners, n)
		if l := f.lines[n]; l != nil {
			_ = l.ClearIRQ()
		}
	}
}

func (f *SimFactory) MapIRQ(n int) int {
	if n < 0 || n > f.maxN {
		return -1
	}
	return simIRQBase + n
}

// LineForIRQ resolves an interrupt number back to its source line. It makes
// the factory usable as an irq.Source.
func (f *SimFactory) LineForIRQ(irqN int) (IRQLine, bool) {
	n := irqN - simIRQBase
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > f.maxN {
		return nil, false
	}
	l, ok := f.lines[n]
	return l, ok
}

// Line exposes the underlying *SimLine for tests and demos (e.g. to drive
// button presses). The line need not be claimed.
func (f *SimFactory) Line(n int) (*SimLine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > f.maxN {
		return nil, false
	}
	l, ok := f.lines[n]
	if !ok {
		l = &SimLine{number: n}
		f.lines[n] = l
	}
	return l, true
}

// Owner reports the current owner of line n, if claimed.
func (f *SimFactory) Owner(n int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[n]
	return o, ok
}
