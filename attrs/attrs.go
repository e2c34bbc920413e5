// Package attrs publishes named groups of readable/writable attributes over
// the bus, the way a sysfs attribute group exposes kernel state. Each
// attribute retains its last rendered text at sys/<group>/<name>/value,
// answers show requests by reply, and routes store requests to its write
// callback.
package attrs

import (
	"log/slog"
	"sync"

	"buttonmon-go/bus"
	"buttonmon-go/errcode"
	"buttonmon-go/types"
)

// Mode carries the permission bits of an attribute.
type Mode uint16

const (
	ModeRO Mode = 0o444
	ModeRW Mode = 0o664
)

// Writable reports whether the owner write bit is set.
func (m Mode) Writable() bool { return m&0o200 != 0 }

// Attribute is one published entry. Show renders the current value and is
// required. Store consumes written text and reports bytes consumed; it is
// required exactly when the mode is writable.
type Attribute struct {
	Name  string
	Mode  Mode
	Show  func() string
	Store func(text string) (int, error)
}

// Topic tokens.
const (
	tokSys   = "sys"
	tokValue = "value"
	tokInfo  = "info"
	tokShow  = "show"
	tokStore = "store"
)

// Surface owns the published groups on one bus connection.
type Surface struct {
	conn *bus.Connection
	log  *slog.Logger

	mu     sync.Mutex
	groups map[string]*Group
}

func NewSurface(conn *bus.Connection, log *slog.Logger) *Surface {
	if log == nil {
		log = slog.Default()
	}
	return &Surface{conn: conn, log: log, groups: map[string]*Group{}}
}

// Publish validates the entries, publishes their retained info and initial
// values, and starts serving show/store requests. Publishing a group name
// twice fails with errcode.SurfaceExists.
func (s *Surface) Publish(group string, attrs []Attribute) (*Group, error) {
	if group == "" || len(attrs) == 0 {
		return nil, &errcode.E{C: errcode.AttrInvalid, Op: "attrs.Publish", Msg: "empty group"}
	}
	byName := make(map[string]*Attribute, len(attrs))
	for i := range attrs {
		a := &attrs[i]
		switch {
		case a.Name == "" || a.Show == nil:
			return nil, &errcode.E{C: errcode.AttrInvalid, Op: "attrs.Publish", Msg: a.Name}
		case a.Mode.Writable() != (a.Store != nil):
			return nil, &errcode.E{C: errcode.AttrInvalid, Op: "attrs.Publish", Msg: a.Name + ": mode/store mismatch"}
		}
		if _, dup := byName[a.Name]; dup {
			return nil, &errcode.E{C: errcode.AttrInvalid, Op: "attrs.Publish", Msg: a.Name + ": duplicate"}
		}
		byName[a.Name] = a
	}

	s.mu.Lock()
	if _, exists := s.groups[group]; exists {
		s.mu.Unlock()
		return nil, &errcode.E{C: errcode.SurfaceExists, Op: "attrs.Publish", Msg: group}
	}
	g := &Group{
		surface: s,
		name:    group,
		attrs:   byName,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.groups[group] = g
	s.mu.Unlock()

	for _, a := range byName {
		s.conn.Publish(s.conn.NewMessage(
			g.topic(a.Name, tokInfo),
			types.AttrInfo{Name: a.Name, Mode: uint16(a.Mode)},
			true,
		))
		g.refresh(a)
	}

	g.showSub = s.conn.Subscribe(bus.T(tokSys, group, bus.WildOne, tokShow))
	g.storeSub = s.conn.Subscribe(bus.T(tokSys, group, bus.WildOne, tokStore))
	go g.serve()

	s.log.Debug("attribute group published", "group", group, "attrs", len(byName))
	return g, nil
}

func (s *Surface) drop(name string) {
	s.mu.Lock()
	delete(s.groups, name)
	s.mu.Unlock()
}

// Group is a published attribute group.
type Group struct {
	surface *Surface
	name    string
	attrs   map[string]*Attribute

	showSub  *bus.Subscription
	storeSub *bus.Subscription
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (g *Group) Name() string { return g.name }

func (g *Group) topic(attr string, suffix string) bus.Topic {
	return bus.T(tokSys, g.name, attr, suffix)
}

// Refresh re-renders an attribute's retained value, for owners whose state
// changed outside a store (e.g. from an interrupt handler's event loop).
func (g *Group) Refresh(attr string) {
	if a, ok := g.attrs[attr]; ok {
		g.refresh(a)
	}
}

func (g *Group) refresh(a *Attribute) {
	g.surface.conn.Publish(g.surface.conn.NewMessage(g.topic(a.Name, tokValue), a.Show(), true))
}

// Unpublish stops serving and clears every retained entry. It is idempotent
// and never fails.
func (g *Group) Unpublish() {
	g.once.Do(func() {
		close(g.quit)
		<-g.done
		g.surface.conn.Unsubscribe(g.showSub)
		g.surface.conn.Unsubscribe(g.storeSub)
		for name := range g.attrs {
			g.surface.conn.Publish(g.surface.conn.NewMessage(g.topic(name, tokValue), nil, true))
			g.surface.conn.Publish(g.surface.conn.NewMessage(g.topic(name, tokInfo), nil, true))
		}
		g.surface.drop(g.name)
		g.surface.log.Debug("attribute group unpublished", "group", g.name)
	})
}

func (g *Group) serve() {
	defer close(g.done)
	for {
		select {
		case <-g.quit:
			return
		case msg := <-g.showSub.Channel():
			g.handleShow(msg)
		case msg := <-g.storeSub.Channel():
			g.handleStore(msg)
		}
	}
}

// sys/<group>/<attr>/show
func (g *Group) handleShow(msg *bus.Message) {
	a, ok := g.attrs[msg.Topic.At(2)]
	if !ok {
		return
	}
	text := a.Show()
	g.surface.conn.Reply(msg, types.AttrRead{Text: text}, false)
	g.surface.conn.Publish(g.surface.conn.NewMessage(g.topic(a.Name, tokValue), text, true))
}

// sys/<group>/<attr>/store
func (g *Group) handleStore(msg *bus.Message) {
	a, ok := g.attrs[msg.Topic.At(2)]
	if !ok {
		return
	}
	text, ok := storeText(msg.Payload)
	if !ok {
		g.surface.conn.Reply(msg, types.AttrWriteResult{Error: string(errcode.AttrInvalid)}, false)
		return
	}
	if !a.Mode.Writable() {
		g.surface.conn.Reply(msg, types.AttrWriteResult{Error: string(errcode.ReadOnly)}, false)
		return
	}
	n, err := a.Store(text)
	if err != nil {
		g.surface.log.Debug("store rejected", "group", g.name, "attr", a.Name, "err", err)
		g.surface.conn.Reply(msg, types.AttrWriteResult{N: n, Error: string(errcode.Of(err))}, false)
		return
	}
	g.refresh(a)
	g.surface.conn.Reply(msg, types.AttrWriteResult{OK: true, N: n}, false)
}

func storeText(p any) (string, bool) {
	switch v := p.(type) {
	case types.AttrWrite:
		return v.Text, true
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
