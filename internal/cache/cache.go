package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/metrics"
	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// DefaultTTL bounds how long a probe result stays valid in the cache.
const DefaultTTL = 15 * time.Minute

// ProbeCache wraps a Prober with a Redis lookaside cache. Entries are keyed
// by path, size, and mtime, so a rewritten file never serves stale metadata.
// Redis being unreachable degrades to probing directly.
type ProbeCache struct {
	client *redis.Client
	inner  probe.Prober
	ttl    time.Duration
	log    zerolog.Logger
}

// NewProbeCache connects to Redis and wraps inner with the cache. A
// nonpositive ttl falls back to DefaultTTL.
func NewProbeCache(host string, port int, password string, db int, inner probe.Prober, ttl time.Duration, log zerolog.Logger) (*ProbeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &ProbeCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		log:    log,
	}, nil
}

// Close closes the Redis connection
func (c *ProbeCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *ProbeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Probe returns cached metadata when the file is unchanged, probing and
// filling the cache otherwise.
func (c *ProbeCache) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		// Let the inner prober report the missing file.
		return c.inner.Probe(ctx, path)
	}

	key := fmt.Sprintf("probe:%s:%d:%d", path, st.Size(), st.ModTime().Unix())

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var info models.MediaInfo
		if err := json.Unmarshal(data, &info); err == nil {
			metrics.RecordCacheAccess("probe", true)
			return &info, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
		c.client.Del(ctx, key)
	case err != redis.Nil:
		c.log.Warn().Err(err).Msg("probe cache unavailable")
	}

	metrics.RecordCacheAccess("probe", false)

	info, err := c.inner.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("failed to store probe result")
		}
	}

	return info, nil
}
