package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

// Default relay subject: every parking event.
const defaultWSSubject = "parking.>"

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "lots" | "spots" | "reservations"
}

// channelSubject maps a client channel name to its event subject pattern.
func channelSubject(channel string) (string, bool) {
	switch channel {
	case "lots":
		return "parking.lot.>", true
	case "spots":
		return "parking.spot.>", true
	case "reservations":
		return "parking.reservation.>", true
	case "", "all":
		return defaultWSSubject, true
	}
	return "", false
}

// wsSubscriptions tracks the subjects relayed to one connection. The
// connection starts on the implicit all-events subject; the first explicit
// subscribe replaces it so no event is delivered twice.
type wsSubscriptions struct {
	stream   EventStream
	relay    func([]byte)
	subs     map[string]func() error // subject -> unsubscribe
	implicit bool
}

func newWSSubscriptions(stream EventStream, relay func([]byte)) (*wsSubscriptions, error) {
	unsub, err := stream.Subscribe(defaultWSSubject, relay)
	if err != nil {
		return nil, err
	}
	return &wsSubscriptions{
		stream:   stream,
		relay:    relay,
		subs:     map[string]func() error{defaultWSSubject: unsub},
		implicit: true,
	}, nil
}

// subscribe adds subject and returns the status reported to the client.
func (w *wsSubscriptions) subscribe(subject string) (string, error) {
	if w.implicit {
		w.implicit = false
		if subject == defaultWSSubject {
			return "subscribed", nil
		}
		w.drop(defaultWSSubject)
	}
	if _, ok := w.subs[subject]; ok {
		return "already subscribed", nil
	}
	if _, ok := w.subs[defaultWSSubject]; ok {
		return "already subscribed", nil
	}
	if subject == defaultWSSubject {
		for s := range w.subs {
			w.drop(s)
		}
	}
	u, err := w.stream.Subscribe(subject, w.relay)
	if err != nil {
		return "", err
	}
	w.subs[subject] = u
	return "subscribed", nil
}

// unsubscribe reports whether subject was subscribed.
func (w *wsSubscriptions) unsubscribe(subject string) bool {
	if _, ok := w.subs[subject]; !ok {
		return false
	}
	w.implicit = false
	w.drop(subject)
	return true
}

func (w *wsSubscriptions) drop(subject string) {
	if u, ok := w.subs[subject]; ok {
		_ = u()
		delete(w.subs, subject)
	}
}

func (w *wsSubscriptions) closeAll() {
	for s := range w.subs {
		w.drop(s)
	}
}

// WebSocketHandler returns a handler that relays committed parking events
// to connected clients.
// Clients send JSON: {"action":"subscribe","channel":"spots"}
// Every new connection starts subscribed to all events.
func WebSocketHandler(stream EventStream) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(data []byte) {
			_ = writeJSON(json.RawMessage(data))
		}

		subs, err := newWSSubscriptions(stream, relay)
		if err != nil {
			slog.Error("ws default subscribe", "error", err)
			return
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := channelSubject(m.Channel)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				status, err := subs.subscribe(subject)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": status, "subject": subject})

			case "unsubscribe":
				if subs.unsubscribe(subject) {
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		subs.closeAll()
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
