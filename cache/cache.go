// Package cache holds the Redis-backed caches used by the feed client.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/padraicbc/hippodash/feed"
)

// DefaultDetailTTL applies when NewDetailCache is given no TTL.
const DefaultDetailTTL = 10 * time.Minute

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return rdb, nil
}

// DetailCache keeps feed race details in Redis as JSON strings.
//
// Key schema:
//
//	feed:detail:{id} - JSON-encoded feed.RaceDetail
type DetailCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

var _ feed.DetailCache = (*DetailCache)(nil)

// NewDetailCache returns a DetailCache over rdb.
func NewDetailCache(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *DetailCache {
	if ttl <= 0 {
		ttl = DefaultDetailTTL
	}
	return &DetailCache{rdb: rdb, ttl: ttl, logger: logger}
}

func detailKey(id string) string { return "feed:detail:" + id }

// GetDetail returns the cached detail for id. Redis errors count as misses.
func (c *DetailCache) GetDetail(ctx context.Context, id string) (*feed.RaceDetail, bool) {
	data, err := c.rdb.Get(ctx, detailKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("detail cache read failed", zap.String("id", id), zap.Error(err))
		return nil, false
	}

	var d feed.RaceDetail
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("detail cache entry corrupt", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	return &d, true
}

// SetDetail stores d under id for the cache TTL.
func (c *DetailCache) SetDetail(ctx context.Context, id string, d *feed.RaceDetail) {
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("detail cache encode failed", zap.String("id", id), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, detailKey(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("detail cache write failed", zap.String("id", id), zap.Error(err))
	}
}
