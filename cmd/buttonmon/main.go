// Command buttonmon runs the button monitor stack: configuration, attribute
// surface, the monitor itself, the periodic stats logger, and the export
// bridge. Platform files choose the line factory and device ID.
package main

import (
	"context"
	"log/slog"
	"time"

	"buttonmon-go/attrs"
	"buttonmon-go/bus"
	"buttonmon-go/irq"
	"buttonmon-go/services/bridge"
	"buttonmon-go/services/button"
	"buttonmon-go/services/config"
	"buttonmon-go/services/statslog"
	"buttonmon-go/types"
)

func main() {
	log := slog.Default()
	b := bus.NewBus(64)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)
	config.New(log).Start(ctx, b.NewConnection("config"))

	lines, src := newLineFactory()
	irqc := irq.NewController(src)
	surface := attrs.NewSurface(b.NewConnection("surface"), log)

	conn := b.NewConnection("main")
	mon := button.New(button.FromConfig(waitMonitorConfig(conn)), button.Deps{
		Lines:   lines,
		IRQ:     irqc,
		Surface: surface,
		Conn:    b.NewConnection("button"),
		Log:     log,
	})
	if err := mon.Start(); err != nil {
		log.Error("monitor start failed", "err", err)
		return
	}
	defer mon.Stop()

	statslog.New(log).Start(ctx, b.NewConnection("statslog"))

	// Blocks for the life of the process.
	bridge.Start(ctx, b.NewConnection("bridge"), log)
}

// waitMonitorConfig blocks briefly for the retained monitor config; built-in
// defaults apply when none arrives.
func waitMonitorConfig(conn *bus.Connection) types.MonitorConfig {
	sub := conn.Subscribe(bus.T("config", "monitor"))
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return config.Monitor(m.Payload)
	case <-time.After(2 * time.Second):
		return types.MonitorConfig{}
	}
}
