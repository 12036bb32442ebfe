package natsadapter

import (
	"github.com/nats-io/nats.go"
)

// Subscriber relays raw event payloads from core NATS subjects. Each
// subscription is independent and ephemeral; nothing is acknowledged.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// Subscribe delivers every message on subject (wildcards allowed) to fn and
// returns a func that cancels the subscription.
func (s *Subscriber) Subscribe(subject string, fn func(data []byte)) (func() error, error) {
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}
