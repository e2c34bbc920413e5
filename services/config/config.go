// Package config publishes the embedded per-device configuration document as
// retained bus messages, one topic per top-level key (config/monitor,
// config/statslog, config/bridge). Services pick up their own section.
package config

import (
	"context"
	"log/slog"

	"buttonmon-go/bus"
	"buttonmon-go/errcode"
	"buttonmon-go/types"

	"github.com/andreyvit/tinyjson"
)

const (
	serviceName = "config"
	topicPrefix = "config"

	// CtxDeviceKey is the context key carrying the device ID the embedded
	// document is looked up by.
	CtxDeviceKey = "device"
)

// EmbeddedConfigLookup resolves a device ID to its raw JSON document. Tests
// and alternate builds may override it.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Service struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log}
}

// Publish parses the device's embedded document and publishes each top-level
// key as a retained message under config/<key>.
func (s *Service) Publish(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return &errcode.E{C: errcode.Error, Op: "config.Publish", Msg: "missing device ID in context"}
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.Error, Op: "config.Publish", Msg: "no embedded config for device " + device}
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	doc, ok := val.(map[string]any)
	if !ok {
		return &errcode.E{C: errcode.Error, Op: "config.Publish", Msg: "embedded config is not a JSON object"}
	}

	for k, v := range doc {
		conn.Publish(&bus.Message{
			Topic:    bus.T(topicPrefix, k),
			Payload:  v,
			Retained: true,
		})
	}
	s.log.Info("configuration published", "service", serviceName, "device", device, "keys", len(doc))
	return nil
}

// Start runs Publish in the background, logging rather than returning the
// outcome.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.Publish(ctx, conn); err != nil {
			s.log.Error("configuration publish failed", "err", err)
		}
	}()
}

// ---- typed section decoders ----
//
// Bus config payloads are the decoded JSON values (map[string]any with
// float64 numbers). The decoders tolerate missing keys and fall back to the
// zero value; defaulting is the consumer's business.

// Monitor extracts the button monitor section.
func Monitor(v any) types.MonitorConfig {
	m, _ := v.(map[string]any)
	return types.MonitorConfig{
		Name:  str(m, "name"),
		Pin:   num(m, "pin"),
		Group: str(m, "group"),
		Pull:  str(m, "pull"),
	}
}

// StatsLog extracts the periodic press-count logger section.
func StatsLog(v any) types.StatsLogConfig {
	m, _ := v.(map[string]any)
	return types.StatsLogConfig{IntervalS: num(m, "interval_s")}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
