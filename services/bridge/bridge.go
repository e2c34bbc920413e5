// Package bridge exports the published attribute surface over a framed
// serial link, so an external host can observe the monitor. Each local
// message under sys/# becomes a CBOR-encoded publish frame; retained values
// replay on link establishment, giving the peer a full snapshot.
package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"buttonmon-go/bus"
	"buttonmon-go/types"
	"buttonmon-go/x/mathx"
	"buttonmon-go/x/timex"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 5 * time.Second

	heartbeatEvery = 5 * time.Second
)

var (
	topicConfig = bus.T("config", "bridge")
	topicState  = bus.T("bridge", "state")
	topicExport = bus.T("sys", "#")
)

// Config arrives on config/bridge as a decoded JSON object.
type Config struct {
	Transport TransportConfig
}

// FromPayload decodes the bus config payload. Missing sections leave zero
// values; an empty transport type means "not configured yet".
func FromPayload(v any) Config {
	m, _ := v.(map[string]any)
	t, _ := m["transport"].(map[string]any)
	cfg := Config{Transport: TransportConfig{Type: str(t, "type")}}
	if sm, ok := t["serial"].(map[string]any); ok {
		cfg.Transport.Serial = &SerialConfig{Device: str(sm, "device"), Baud: num(sm, "baud")}
	}
	if um, ok := t["uart"].(map[string]any); ok {
		cfg.Transport.UART = &UARTConfig{Baud: num(um, "baud"), RxPin: num(um, "rx_pin"), TxPin: num(um, "tx_pin")}
	}
	return cfg
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

type Service struct {
	conn *bus.Connection
	log  *slog.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
}

// Start runs the bridge until ctx is cancelled. It waits for configuration
// on config/bridge and supervises one link at a time; a new config replaces
// the running link.
func Start(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{conn: conn, log: log}
	s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg := FromPayload(msg.Payload)
			if cfg.Transport.Type == "" {
				s.publishState("error", "config_decode_failed", nil)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

// runLink dials with exponential backoff and owns one link at a time.
func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	delay := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			s.publishState("degraded", "dial_failed_retrying", err)
			if !sleep(ctx, delay) {
				return
			}
			delay = mathx.Clamp(delay*2, minBackoff, maxBackoff)
			continue
		}
		delay = minBackoff

		s.log.Info("bridge link established", "transport", tr.String())
		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, rwc)
		_ = rwc.Close()
		if err == nil {
			s.publishState("idle", "link_closed", nil)
			return
		}
		s.publishState("degraded", "link_lost_retrying", err)
		if !sleep(ctx, delay) {
			return
		}
		delay = mathx.Clamp(delay*2, minBackoff, maxBackoff)
	}
}

// handleLink owns the active link: it replays the retained attribute state,
// streams subsequent sys/# traffic as publish frames, and keeps the link
// alive with ping/pong. Returns nil on a clean peer close.
func (s *Service) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	sub := s.conn.Subscribe(topicExport)
	defer s.conn.Unsubscribe(sub)

	rd := newFrameReader(rwc)
	wr := newFrameWriter(rwc)

	inbound := make(chan Frame, 8)
	errCh := make(chan error, 1)
	go func() {
		for {
			f, err := rd.ReadFrame()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case inbound <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(heartbeatEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = wr.WriteFrame(Frame{Type: FrameClose})
			return nil
		case err := <-errCh:
			return err
		case f := <-inbound:
			switch f.Type {
			case FramePing:
				if err := wr.WriteFrame(Frame{Type: FramePong}); err != nil {
					return err
				}
			case FramePong:
			case FrameClose:
				return nil
			default:
				s.log.Debug("bridge frame ignored", "type", f.Type)
			}
		case m, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			f, err := PubFrame(m)
			if err != nil {
				s.log.Warn("bridge payload not encodable", "topic", m.Topic.String(), "err", err)
				continue
			}
			if err := wr.WriteFrame(f); err != nil {
				return err
			}
		case <-tick.C:
			if err := wr.WriteFrame(Frame{Type: FramePing}); err != nil {
				return err
			}
		}
	}
}

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
