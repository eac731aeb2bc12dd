package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

const instanceTTL = 10 * time.Minute

// InstanceCache implements domain.InstanceCache with JSON-serialized
// instance records. Instances are immutable once deployed so a longer TTL
// is safe; Invalidate exists for operational hygiene only.
//
// Key schema:
//
//	instance:{address} - JSON-encoded domain.Instance
type InstanceCache struct {
	rdb *redis.Client
}

// NewInstanceCache creates an InstanceCache backed by the given Client.
func NewInstanceCache(c *Client) *InstanceCache {
	return &InstanceCache{rdb: c.Underlying()}
}

func instanceKey(addr common.Address) string {
	return "instance:" + addr.Hex()
}

// Set stores an instance record with a TTL.
func (ic *InstanceCache) Set(ctx context.Context, inst domain.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("redis: marshal instance %s: %w", inst.Address.Hex(), err)
	}
	if err := ic.rdb.Set(ctx, instanceKey(inst.Address), data, instanceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set instance %s: %w", inst.Address.Hex(), err)
	}
	return nil
}

// Get retrieves an instance record. It returns domain.ErrNotFound when the
// key does not exist.
func (ic *InstanceCache) Get(ctx context.Context, addr common.Address) (domain.Instance, error) {
	data, err := ic.rdb.Get(ctx, instanceKey(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Instance{}, domain.ErrNotFound
		}
		return domain.Instance{}, fmt.Errorf("redis: get instance %s: %w", addr.Hex(), err)
	}

	var inst domain.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return domain.Instance{}, fmt.Errorf("redis: unmarshal instance %s: %w", addr.Hex(), err)
	}
	return inst, nil
}

// Invalidate drops a cached instance record.
func (ic *InstanceCache) Invalidate(ctx context.Context, addr common.Address) error {
	if err := ic.rdb.Del(ctx, instanceKey(addr)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate instance %s: %w", addr.Hex(), err)
	}
	return nil
}

var _ domain.InstanceCache = (*InstanceCache)(nil)
