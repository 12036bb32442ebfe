package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// EventPublisher publishes committed parking events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ParkingEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
