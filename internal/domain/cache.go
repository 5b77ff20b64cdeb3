package domain

import (
	"context"
	"time"
)

// MarketInfoCache keeps provider lookups for a while so repeated resolution
// runs do not hit the provider.
type MarketInfoCache interface {
	Set(ctx context.Context, info MarketInfo) error
	Get(ctx context.Context, conditionID MarketID) (MarketInfo, error)
	Invalidate(ctx context.Context, conditionID MarketID) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
