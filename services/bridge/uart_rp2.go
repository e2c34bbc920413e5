//go:build rp2040 || rp2350

package bridge

import (
	"context"
	"io"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

func init() {
	UARTDial = dialUARTX
}

func dialUARTX(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error) {
	hw := uartx.UART0
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(u.Baud),
		TX:       machine.Pin(u.TxPin),
		RX:       machine.Pin(u.RxPin),
	}); err != nil {
		return nil, err
	}
	return &uartPort{ctx: ctx, u: hw}, nil
}

// uartPort adapts uartx to io.ReadWriteCloser. Reads block on the dialling
// context; Close is a no-op, the UART outlives any one link.
type uartPort struct {
	ctx context.Context
	u   *uartx.UART
}

func (p *uartPort) Read(b []byte) (int, error) {
	return p.u.RecvSomeContext(p.ctx, b)
}

func (p *uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *uartPort) Close() error { return nil }
