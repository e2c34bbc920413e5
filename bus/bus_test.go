// bus/bus_test.go
package bus

import (
	"testing"
	"time"
)

func expectPayload(t *testing.T, s *Subscription, want any) {
	t.Helper()
	select {
	case got := <-s.Channel():
		if got.Payload != want {
			t.Fatalf("expected payload %v, got %v", want, got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for %v on %s", want, s.Topic())
	}
}

func expectNoMessage(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case got := <-s.Channel():
		t.Fatalf("unexpected message %v on %s", got.Payload, s.Topic())
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("sys", "gpio46", "numberPresses"))
	conn.Publish(conn.NewMessage(T("sys", "gpio46", "numberPresses"), "7", false))

	expectPayload(t, sub, "7")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("sys", "gpio46", "gpioState"), "1", true))

	sub := conn.Subscribe(T("sys", "gpio46", "gpioState"))
	expectPayload(t, sub, "1")
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("a", "b"), "v", true))
	conn.Publish(conn.NewMessage(T("a", "b"), nil, true))

	sub := conn.Subscribe(T("a", "b"))
	expectNoMessage(t, sub)
}

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a", "+", "c"))
	s2 := c.Subscribe(T("a", "+", "+"))
	s3 := c.Subscribe(T("a", "b", "+"))
	sNo := c.Subscribe(T("a", "+", "d"))

	c.Publish(b.NewMessage(T("a", "b", "c"), "m1", false))

	expectPayload(t, s1, "m1")
	expectPayload(t, s2, "m1")
	expectPayload(t, s3, "m1")
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(T("a", "x", "y"), "m2", false))

	expectPayload(t, s2, "m2")
	expectNoMessage(t, s1)
	expectNoMessage(t, s3)

	// Too short for any three-token pattern.
	c.Publish(b.NewMessage(T("a", "c"), "m3", false))
	expectNoMessage(t, s1)
	expectNoMessage(t, s2)
	expectNoMessage(t, s3)
	expectNoMessage(t, sNo)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAHash := c.Subscribe(T("a", "#"))
	sHash := c.Subscribe(T("#"))
	sABHash := c.Subscribe(T("a", "b", "#"))
	sAExact := c.Subscribe(T("a"))

	c.Publish(b.NewMessage(T("a"), "p1", false))
	expectPayload(t, sAHash, "p1")
	expectPayload(t, sHash, "p1")
	expectPayload(t, sAExact, "p1")
	expectNoMessage(t, sABHash)

	c.Publish(b.NewMessage(T("a", "b"), "p2", false))
	expectPayload(t, sAHash, "p2")
	expectPayload(t, sHash, "p2")
	expectPayload(t, sABHash, "p2")
	expectNoMessage(t, sAExact)

	c.Publish(b.NewMessage(T("a", "b", "c"), "p3", false))
	expectPayload(t, sAHash, "p3")
	expectPayload(t, sHash, "p3")
	expectPayload(t, sABHash, "p3")
	expectNoMessage(t, sAExact)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("sys", "gpio46", "irqNumber"), "201", true))
	c.Publish(b.NewMessage(T("sys", "gpio46", "gpioState"), "0", true))

	sub := c.Subscribe(T("sys", "gpio46", "+"))
	got := map[any]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-sub.Channel():
			got[m.Payload] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for retained messages")
		}
	}
	if !got["201"] || !got["0"] {
		t.Fatalf("missing retained values: %v", got)
	}

	hash := c.Subscribe(T("sys", "#"))
	for i := 0; i < 2; i++ {
		select {
		case <-hash.Channel():
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for retained messages on # pattern")
		}
	}
}

func TestReply(t *testing.T) {
	b := NewBus(4)
	server := b.NewConnection("server")
	client := b.NewConnection("client")

	req := server.Subscribe(T("svc", "show"))
	rt := client.NextReplyTopic()
	resp := client.Subscribe(rt)

	client.Publish(&Message{Topic: T("svc", "show"), ReplyTo: rt})

	select {
	case m := <-req.Channel():
		if !m.CanReply() {
			t.Fatal("request lost its reply topic")
		}
		server.Reply(m, "46\n", false)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for request")
	}

	expectPayload(t, resp, "46\n")
}

func TestDropOldestWhenFull(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("x"))
	for i := 0; i < 5; i++ {
		c.Publish(b.NewMessage(T("x"), i, false))
	}

	// Queue length is 2: the two newest survive.
	expectPayload(t, sub, 3)
	expectPayload(t, sub, 4)
}

func TestUnsubscribePrunes(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("deep", "branch", "leaf"))
	c.Unsubscribe(sub)

	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}
}

func TestDisconnectClosesChannels(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b"))
	c.Disconnect()

	if _, ok := <-s1.Channel(); ok {
		t.Fatal("s1 channel still open")
	}
	if _, ok := <-s2.Channel(); ok {
		t.Fatal("s2 channel still open")
	}
}
