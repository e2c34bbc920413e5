// Package gpio is the digital line binding consumed by the button monitor:
// claim a line as input, read its level, map it to an interrupt number.
package gpio

import "buttonmon-go/errcode"

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull maps a config string to a Pull; unknown strings mean none.
func ParsePull(s string) Pull {
	switch s {
	case "up":
		return PullUp
	case "down":
		return PullDown
	default:
		return PullNone
	}
}

// Edge selection for line interrupts.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Line is a single digital input.
type Line interface {
	Number() int
	ConfigureInput(pull Pull) error
	Get() bool
}

// IRQLine extends Line with an edge-triggered callback. The callback runs in
// interrupt context and must not block.
type IRQLine interface {
	Line
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// LineFactory hands out exclusively owned lines and maps them to interrupt
// numbers (the gpio_to_irq equivalent).
type LineFactory interface {
	// Claim acquires line n for owner. A second claim of the same line
	// fails with errcode.LineInUse; an invalid number with
	// errcode.UnknownLine.
	Claim(owner string, n int) (IRQLine, error)
	// Release returns the line. Releasing an unclaimed line is a no-op.
	Release(owner string, n int)
	// MapIRQ returns the interrupt number the line is routed to, or -1.
	MapIRQ(n int) int
}

// Claim errors, re-exported for call sites that switch on them.
var (
	ErrUnknownLine = errcode.UnknownLine
	ErrLineInUse   = errcode.LineInUse
)
