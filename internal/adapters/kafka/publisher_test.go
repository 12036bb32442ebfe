package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_KeysBySpot(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), domain.ParkingEvent{
		Type: domain.EventReservationCreated, LotID: "lot-1", SpotID: "spot-1", ReservationID: "r-1", OccurredAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), domain.ParkingEvent{
		Type: domain.EventLotCreated, LotID: "lot-1", OccurredAt: now,
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "spot-1", string(w.msgs[0].Key))
	assert.Equal(t, "lot-1", string(w.msgs[1].Key))
	assert.Equal(t, "reservation.created", string(w.msgs[0].Headers[0].Value))

	var decoded domain.ParkingEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "r-1", decoded.ReservationID)
}

func TestPublisher_WriteError(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("leader not available")})
	err := p.Publish(context.Background(), domain.ParkingEvent{Type: domain.EventSpotReleased, SpotID: "s"})
	assert.ErrorContains(t, err, "leader not available")
}

func TestPublisher_Closed(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), domain.ParkingEvent{Type: domain.EventSpotReleased, SpotID: "s"})
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "parking-events")
	assert.Error(t, err)
	_, err = NewPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
