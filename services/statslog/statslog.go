// Package statslog periodically reports the press count from the retained
// attribute surface, as a log line and a retained statslog/report message.
package statslog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"buttonmon-go/bus"
	"buttonmon-go/types"
	"buttonmon-go/x/mathx"
	"buttonmon-go/x/timex"
)

const (
	defaultIntervalS = 5
	minIntervalS     = 1
	maxIntervalS     = 3600
)

var (
	topicConfig  = bus.T("config", "statslog")
	topicPresses = bus.T("sys", "+", "numberPresses", "value")
	topicReport  = bus.T("statslog", "report")
)

type Service struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log}
}

// Start launches the reporting loop; it runs until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.loop(ctx, conn)
}

func (s *Service) loop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)
	valSub := conn.Subscribe(topicPresses)
	defer conn.Unsubscribe(valSub)

	tick := time.NewTicker(interval(types.StatsLogConfig{IntervalS: defaultIntervalS}))
	defer tick.Stop()

	var (
		group   string
		presses uint32
		seen    bool
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("statslog stopping")
			return
		case msg := <-cfgSub.Channel():
			cfg := decodeConfig(msg.Payload)
			tick.Reset(interval(cfg))
			s.log.Info("statslog interval set", "interval", interval(cfg))
		case msg := <-valSub.Channel():
			if len(msg.Topic) != 4 {
				continue
			}
			text, ok := msg.Payload.(string)
			if !ok {
				continue
			}
			v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
			if err != nil {
				continue
			}
			group = msg.Topic.At(1)
			presses = uint32(v)
			seen = true
		case <-tick.C:
			if !seen {
				continue
			}
			s.log.Info("pressed", "group", group, "times", presses)
			conn.Publish(conn.NewMessage(topicReport, types.StatsReport{
				Group:   group,
				Presses: presses,
				TSms:    timex.NowMs(),
			}, true))
		}
	}
}

func decodeConfig(v any) types.StatsLogConfig {
	m, _ := v.(map[string]any)
	cfg := types.StatsLogConfig{IntervalS: defaultIntervalS}
	switch iv := m["interval_s"].(type) {
	case float64:
		cfg.IntervalS = int(iv)
	case int64:
		cfg.IntervalS = int(iv)
	case int:
		cfg.IntervalS = iv
	}
	return cfg
}

func interval(cfg types.StatsLogConfig) time.Duration {
	return time.Duration(mathx.Clamp(cfg.IntervalS, minIntervalS, maxIntervalS)) * time.Second
}
