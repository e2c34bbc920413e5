//go:build !rp2040 && !rp2350

package bridge

import (
	"context"
	"io"

	"buttonmon-go/errcode"

	"github.com/tarm/serial"
)

func init() {
	RegisterTransport("serial", newSerialTransport)
}

// serialTransport opens a host serial device with tarm/serial.
type serialTransport struct {
	cfg SerialConfig
}

func newSerialTransport(cfg TransportConfig) (Transport, error) {
	if cfg.Serial == nil || cfg.Serial.Device == "" {
		return nil, &errcode.E{C: errcode.Error, Op: "bridge.newTransport", Msg: "serial transport requires a device"}
	}
	return &serialTransport{cfg: *cfg.Serial}, nil
}

func (t *serialTransport) Open(_ context.Context) (io.ReadWriteCloser, error) {
	baud := t.cfg.Baud
	if baud == 0 {
		baud = 115200
	}
	return serial.OpenPort(&serial.Config{Name: t.cfg.Device, Baud: baud})
}

func (t *serialTransport) String() string { return "serial" }
