package button

import (
	"strconv"
	"strings"
	"sync"

	"buttonmon-go/errcode"
)

// state is the monitor's shared record: the interrupt number, the last
// sampled line level, and the press count. The interrupt handler is the only
// writer of level; presses is written by the handler and by the external
// store path. One mutex keeps the {level, presses} pair consistent for
// readers; irqN is written once during acquisition, before the handler is
// registered, and needs no synchronisation after that.
type state struct {
	mu      sync.Mutex
	irqN    int
	level   int
	presses uint32
}

// seed records the interrupt number and the level read at acquisition time,
// before any edge has fired.
func (s *state) seed(irqN, level int) {
	s.mu.Lock()
	s.irqN = irqN
	s.level = level
	s.mu.Unlock()
}

// observeEdge is the handler's transition. The level is always recorded; the
// count moves only when the sampled level is logical low. The trigger is
// configured for both edges, so roughly half of all invocations (the rising
// ones) update the level without counting. That polarity test, not true
// edge-type detection, is what defines a press.
func (s *state) observeEdge(level int) uint32 {
	s.mu.Lock()
	s.level = level
	if level == 0 {
		s.presses++
	}
	p := s.presses
	s.mu.Unlock()
	return p
}

// snapshot returns the {level, presses} pair from one critical section.
func (s *state) snapshot() (level int, presses uint32) {
	s.mu.Lock()
	level, presses = s.level, s.presses
	s.mu.Unlock()
	return level, presses
}

func (s *state) irqNumber() int {
	s.mu.Lock()
	n := s.irqN
	s.mu.Unlock()
	return n
}

func (s *state) lineLevel() int {
	s.mu.Lock()
	l := s.level
	s.mu.Unlock()
	return l
}

func (s *state) pressCount() uint32 {
	s.mu.Lock()
	p := s.presses
	s.mu.Unlock()
	return p
}

// storePresses parses externally written text and replaces the count
// wholesale. On success it reports the full input length as consumed, the
// way a sysfs store does. A failed parse consumes nothing, changes nothing,
// and surfaces invalid_number instead of pretending the write succeeded.
func (s *state) storePresses(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	v, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, &errcode.E{C: errcode.InvalidNumber, Op: "button.storePresses", Err: err}
	}
	s.mu.Lock()
	s.presses = uint32(v)
	s.mu.Unlock()
	return len(text), nil
}
