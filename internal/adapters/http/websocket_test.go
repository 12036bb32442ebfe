package http

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// fakeStream is an in-process EventStream with NATS-style ">" wildcards.
type fakeStream struct {
	mu         sync.Mutex
	next       int
	subs       map[int]fakeSub
	subscribed chan string
}

type fakeSub struct {
	subject string
	fn      func([]byte)
}

func newFakeStream() *fakeStream {
	return &fakeStream{subs: make(map[int]fakeSub), subscribed: make(chan string, 16)}
}

func (s *fakeStream) Subscribe(subject string, fn func(data []byte)) (func() error, error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fakeSub{subject: subject, fn: fn}
	s.mu.Unlock()
	s.subscribed <- subject
	return func() error {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		return nil
	}, nil
}

func (s *fakeStream) publish(subject string, data []byte) {
	s.mu.Lock()
	var fns []func([]byte)
	for _, sub := range s.subs {
		if subjectMatches(sub.subject, subject) {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
}

func (s *fakeStream) active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, sub := range s.subs {
		out = append(out, sub.subject)
	}
	return out
}

func subjectMatches(pattern, subject string) bool {
	if strings.HasSuffix(pattern, ">") {
		return strings.HasPrefix(subject, strings.TrimSuffix(pattern, ">"))
	}
	return pattern == subject
}

func TestWSSubscriptions_ExplicitChannelReplacesDefault(t *testing.T) {
	stream := newFakeStream()
	var got []string
	subs, err := newWSSubscriptions(stream, func(b []byte) { got = append(got, string(b)) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := subs.subscribe("parking.spot.>")
	if err != nil || status != "subscribed" {
		t.Fatalf("expected subscribed, got %q (%v)", status, err)
	}
	if a := stream.active(); len(a) != 1 || a[0] != "parking.spot.>" {
		t.Fatalf("expected only parking.spot.>, got %v", a)
	}

	stream.publish("parking.spot.released", []byte("s1"))
	stream.publish("parking.lot.created", []byte("l1"))
	if len(got) != 1 || got[0] != "s1" {
		t.Errorf("expected exactly one spot event, got %v", got)
	}
}

func TestWSSubscriptions_AllCoversChannels(t *testing.T) {
	stream := newFakeStream()
	subs, err := newWSSubscriptions(stream, func([]byte) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if status, _ := subs.subscribe("parking.spot.>"); status != "subscribed" {
		t.Fatalf("expected subscribed, got %q", status)
	}
	if status, _ := subs.subscribe("parking.spot.>"); status != "already subscribed" {
		t.Errorf("expected already subscribed, got %q", status)
	}

	// Subscribing to all drops the narrower subjects.
	if status, _ := subs.subscribe(defaultWSSubject); status != "subscribed" {
		t.Fatalf("expected subscribed, got %q", status)
	}
	if a := stream.active(); len(a) != 1 || a[0] != defaultWSSubject {
		t.Fatalf("expected only %s, got %v", defaultWSSubject, a)
	}
	if status, _ := subs.subscribe("parking.lot.>"); status != "already subscribed" {
		t.Errorf("expected lots to be covered by all, got %q", status)
	}
	if len(stream.active()) != 1 {
		t.Errorf("expected a single subscription, got %v", stream.active())
	}

	if !subs.unsubscribe(defaultWSSubject) {
		t.Error("expected unsubscribe to succeed")
	}
	if subs.unsubscribe(defaultWSSubject) {
		t.Error("second unsubscribe must report not subscribed")
	}
	subs.closeAll()
	if len(stream.active()) != 0 {
		t.Errorf("expected no subscriptions, got %v", stream.active())
	}
}

func TestWebSocket_RelaysEvents(t *testing.T) {
	stream := newFakeStream()
	app := fiber.New()
	SetupRoutes(app, &Dependencies{Events: stream, Checks: map[string]CheckFunc{}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitSubscribed(t, stream, defaultWSSubject)

	read := func() string {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(msg)
	}

	stream.publish("parking.lot.created", []byte(`{"type":"lot.created"}`))
	if got := read(); got != `{"type":"lot.created"}` {
		t.Errorf("expected lot event, got %s", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","channel":"spots"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack map[string]string
	if err := json.Unmarshal([]byte(read()), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack["status"] != "subscribed" || ack["subject"] != "parking.spot.>" {
		t.Errorf("unexpected ack %v", ack)
	}
	waitSubscribed(t, stream, "parking.spot.>")

	stream.publish("parking.spot.released", []byte(`{"n":1}`))
	stream.publish("parking.lot.created", []byte(`{"n":2}`))
	stream.publish("parking.spot.created", []byte(`{"n":3}`))
	if got := read(); got != `{"n":1}` {
		t.Errorf("expected first spot event, got %s", got)
	}
	if got := read(); got != `{"n":3}` {
		t.Errorf("expected second spot event once and no lot event, got %s", got)
	}
}

func waitSubscribed(t *testing.T, stream *fakeStream, subject string) {
	t.Helper()
	for {
		select {
		case s := <-stream.subscribed:
			if s == subject {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for subscription to %s", subject)
		}
	}
}
