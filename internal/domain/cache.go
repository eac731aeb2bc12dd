package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// InstanceCache provides fast instance metadata lookups in front of the
// persistent store.
type InstanceCache interface {
	Set(ctx context.Context, inst Instance) error
	Get(ctx context.Context, addr common.Address) (Instance, error)
	Invalidate(ctx context.Context, addr common.Address) error
}

// RateLimiter provides distributed rate limiting for the API surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking so engine operations stay
// serialized across replicas sharing one journal.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of marketplace events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
