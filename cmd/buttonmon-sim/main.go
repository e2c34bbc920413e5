//go:build !rp2040 && !rp2350

// Command buttonmon-sim runs the full stack on the host against a simulated
// line, pressing the button once a second and echoing the published state.
// Ctrl-C stops the monitor cleanly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"buttonmon-go/attrs"
	"buttonmon-go/bus"
	"buttonmon-go/gpio"
	"buttonmon-go/irq"
	"buttonmon-go/services/button"
	"buttonmon-go/services/config"
	"buttonmon-go/services/statslog"
	"buttonmon-go/types"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := bus.NewBus(64)
	cctx := context.WithValue(ctx, config.CtxDeviceKey, "sim")
	if err := config.New(log).Publish(cctx, b.NewConnection("config")); err != nil {
		log.Error("config publish failed", "err", err)
		os.Exit(1)
	}

	f := gpio.NewSimFactory(63)
	irqc := irq.NewController(f)
	surface := attrs.NewSurface(b.NewConnection("surface"), log)

	conn := b.NewConnection("main")
	mcSub := conn.Subscribe(bus.T("config", "monitor"))
	cfg := button.FromConfig(config.Monitor((<-mcSub.Channel()).Payload))
	conn.Unsubscribe(mcSub)

	mon := button.New(cfg, button.Deps{
		Lines:   f,
		IRQ:     irqc,
		Surface: surface,
		Conn:    b.NewConnection("button"),
		Log:     log,
	})

	// Idle-high line, as a pulled-up button reads.
	line, _ := f.Line(cfg.Pin)
	line.Drive(true)

	if err := mon.Start(); err != nil {
		log.Error("monitor start failed", "err", err)
		os.Exit(1)
	}

	statslog.New(log).Start(cctx, b.NewConnection("statslog"))

	events := conn.Subscribe(bus.T("button", "+", "event"))
	go func() {
		for m := range events.Channel() {
			ev := m.Payload.(types.ButtonEvent)
			log.Info("edge", "level", ev.Level, "presses", ev.Presses)
		}
	}()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			mon.Stop()
			_, presses := mon.Snapshot()
			log.Info("simulation finished", "presses", presses)
			return
		case <-tick.C:
			line.Drive(false)
			time.Sleep(30 * time.Millisecond)
			line.Drive(true)
		}
	}
}
