// Package cache holds the Redis-backed read cache for stock status queries.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/config"
	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "inventory:status"
	// allWarehouses is the key segment for queries not scoped to a warehouse.
	allWarehouses = "all"
	defaultTTL    = 30 * time.Second
)

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// StatusCache caches status rows per query filter. Every key is also listed
// in an index set of its warehouse so a commit can drop them in one call.
type StatusCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ service.StatusCache = (*StatusCache)(nil)

// NewStatusCache creates a status cache. A zero ttl uses 30s.
func NewStatusCache(rdb redis.Cmdable, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// GetStatus returns the cached rows for filter. ok is false on a miss.
func (c *StatusCache) GetStatus(ctx context.Context, filter repository.CellFilter) ([]service.CellStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, StatusKey(filter)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("status cache get: %w", err)
	}

	var rows []service.CellStatus
	if err := json.Unmarshal(raw, &rows); err != nil {
		// A row shape from an older build; treat as a miss.
		return nil, false, nil
	}
	return rows, true, nil
}

// SetStatus stores rows for filter and indexes the key under its warehouse.
func (c *StatusCache) SetStatus(ctx context.Context, filter repository.CellFilter, rows []service.CellStatus) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("status cache encode: %w", err)
	}

	key := StatusKey(filter)
	index := IndexKey(scope(filter.WarehouseID))

	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, raw, c.ttl)
		p.SAdd(ctx, index, key)
		p.Expire(ctx, index, 2*c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("status cache set: %w", err)
	}
	return nil
}

// InvalidateWarehouse drops every cached query of the warehouse and every
// query spanning all warehouses.
func (c *StatusCache) InvalidateWarehouse(ctx context.Context, warehouseID string) error {
	for _, s := range []string{scope(warehouseID), allWarehouses} {
		index := IndexKey(s)
		keys, err := c.rdb.SMembers(ctx, index).Result()
		if err != nil {
			return fmt.Errorf("status cache index %s: %w", s, err)
		}
		if err := c.rdb.Del(ctx, append(keys, index)...).Err(); err != nil {
			return fmt.Errorf("status cache invalidate %s: %w", s, err)
		}
	}
	return nil
}

// StatusKey is the cache key of a status query.
func StatusKey(filter repository.CellFilter) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%d|%d", filter.ProductID, filter.Search, filter.Limit, filter.Offset)
	return fmt.Sprintf("%s:%s:%s", keyPrefix, scope(filter.WarehouseID), hex.EncodeToString(h.Sum(nil))[:16])
}

// IndexKey is the key of the set listing a warehouse's cached queries.
func IndexKey(warehouseScope string) string {
	return fmt.Sprintf("%s:idx:%s", keyPrefix, warehouseScope)
}

func scope(warehouseID string) string {
	if warehouseID == "" {
		return allWarehouses
	}
	return warehouseID
}
