package usecases_test

import (
	"context"
	"sync"
	"testing"

	"github.com/samirrijal/bilbopark/internal/adapters/memory"
	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.ParkingEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, ev domain.ParkingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockPublisher) types() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock Store (for failure injection) ---

type mockStore struct {
	repos  ports.Repositories
	inTxFn func(ctx context.Context, fn ports.TxFunc) error
}

func (m *mockStore) Repositories() ports.Repositories { return m.repos }

func (m *mockStore) InTx(ctx context.Context, fn ports.TxFunc) error {
	if m.inTxFn != nil {
		return m.inTxFn(ctx, fn)
	}
	return fn(ctx, m.repos)
}

// assertAvailabilityInvariant checks that every spot is unavailable exactly
// when it has an active reservation.
func assertAvailabilityInvariant(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repositories()

	spots, err := repos.Spots.List(ctx, false)
	if err != nil {
		t.Fatalf("list spots: %v", err)
	}
	for _, sp := range spots {
		history, err := repos.Reservations.ListBySpot(ctx, sp.ID)
		if err != nil {
			t.Fatalf("list reservations: %v", err)
		}
		active := 0
		for _, r := range history {
			if r.IsActive() {
				active++
			}
		}
		if sp.Available != (active == 0) {
			t.Errorf("spot %s: available=%v with %d active reservations", sp.Label, sp.Available, active)
		}
	}
}

func mustLot(t *testing.T, svc interface {
	CreateLot(ctx context.Context, name string, lat, lon float64) (*domain.Lot, error)
}, name string, lat, lon float64) *domain.Lot {
	t.Helper()
	lot, err := svc.CreateLot(context.Background(), name, lat, lon)
	if err != nil {
		t.Fatalf("create lot %s: %v", name, err)
	}
	return lot
}
