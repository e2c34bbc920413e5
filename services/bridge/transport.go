package bridge

import (
	"context"
	"io"
	"sync"

	"buttonmon-go/errcode"
)

// Transport is a pluggable link dialler.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type TransportConfig struct {
	// "serial" (host builds), "uart" (rp2 builds), or a name registered via
	// RegisterTransport.
	Type   string
	Serial *SerialConfig
	UART   *UARTConfig
}

// SerialConfig opens a host serial device.
type SerialConfig struct {
	Device string
	Baud   int
}

// UARTConfig selects an on-chip UART; pin numbers are platform IDs.
type UARTConfig struct {
	Baud  int
	RxPin int
	TxPin int
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]transportFactory{}
)

// RegisterTransport adds a named transport. Platform files register their own
// in init; tests register loopbacks.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	if cfg.Type == "uart" {
		return newUARTTransport(cfg)
	}
	return nil, &errcode.E{C: errcode.Error, Op: "bridge.newTransport", Msg: "unknown transport type " + cfg.Type}
}

// UARTDial opens the configured on-chip UART. The rp2 build wires it to the
// hardware; it stays nil on hosts.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct {
	cfg UARTConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, &errcode.E{C: errcode.Error, Op: "bridge.newTransport", Msg: "uart transport requires uart config"}
	}
	return &uartTransport{cfg: *cfg.UART}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, &errcode.E{C: errcode.Error, Op: "bridge.Open", Msg: "no UART dialler on this platform"}
	}
	return UARTDial(ctx, u.cfg)
}

func (u *uartTransport) String() string { return "uart" }
