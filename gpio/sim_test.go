//go:build !rp2040 && !rp2350

package gpio

import (
	"testing"

	"buttonmon-go/errcode"
)

func TestSimFactoryClaimRelease(t *testing.T) {
	f := NewSimFactory(28)

	l, err := f.Claim("svc", 5)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if l.Number() != 5 {
		t.Fatalf("wrong number: %d", l.Number())
	}

	if _, err := f.Claim("other", 5); errcode.Of(err) != errcode.LineInUse {
		t.Fatalf("expected line_in_use, got %v", err)
	}

	// Release by a non-owner must not free the line.
	f.Release("other", 5)
	if _, ok := f.Owner(5); !ok {
		t.Fatal("line freed by non-owner")
	}

	f.Release("svc", 5)
	if _, err := f.Claim("other", 5); err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}
}

func TestSimFactoryUnknownLine(t *testing.T) {
	f := NewSimFactory(28)
	if _, err := f.Claim("svc", 29); errcode.Of(err) != errcode.UnknownLine {
		t.Fatalf("expected unknown_line, got %v", err)
	}
	if f.MapIRQ(29) != -1 {
		t.Fatal("MapIRQ accepted an invalid line")
	}
}

func TestSimFactoryIRQMapping(t *testing.T) {
	f := NewSimFactory(28)
	irqN := f.MapIRQ(7)
	if irqN < simIRQBase {
		t.Fatalf("irq number %d not offset from line space", irqN)
	}

	l, _ := f.Claim("svc", 7)
	got, ok := f.LineForIRQ(f.MapIRQ(7))
	if !ok || got != l {
		t.Fatal("LineForIRQ did not resolve the claimed line")
	}
}

func TestSimLineEdgeDispatch(t *testing.T) {
	l := &SimLine{number: 3}

	var fired []Edge
	if err := l.SetIRQ(EdgeBoth, func() {
		if l.Get() {
			fired = append(fired, EdgeRising)
		} else {
			fired = append(fired, EdgeFalling)
		}
	}); err != nil {
		t.Fatalf("SetIRQ: %v", err)
	}

	l.Drive(true)
	l.Drive(true) // no edge
	l.Drive(false)

	if len(fired) != 2 || fired[0] != EdgeRising || fired[1] != EdgeFalling {
		t.Fatalf("unexpected dispatches: %v", fired)
	}

	if err := l.ClearIRQ(); err != nil {
		t.Fatalf("ClearIRQ: %v", err)
	}
	l.Drive(true)
	if len(fired) != 2 {
		t.Fatal("ISR fired after ClearIRQ")
	}
}

func TestSimLineSingleEdgeFilter(t *testing.T) {
	l := &SimLine{number: 4}

	count := 0
	_ = l.SetIRQ(EdgeFalling, func() { count++ })

	l.Drive(true)  // rising, filtered
	l.Drive(false) // falling
	l.Drive(true)
	l.Drive(false)

	if count != 2 {
		t.Fatalf("expected 2 falling dispatches, got %d", count)
	}
}
