package regime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "regime:"

// RedisCache stores regimes in Redis so multiple engine processes share one
// classification per symbol. Entries carry a real TTL on top of the
// classifier's candle-time staleness check.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCache creates a Redis-backed regime cache
func NewRedisCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "regime_cache").Logger(),
	}
}

// Get retrieves the cached regime for a symbol
func (rc *RedisCache) Get(symbol string) (*Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := rc.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			rc.logger.Warn().Err(err).Str("symbol", symbol).Msg("regime cache read failed")
		}
		return nil, false
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		rc.logger.Warn().Err(err).Str("symbol", symbol).Msg("regime cache entry corrupt")
		return nil, false
	}

	return &result, true
}

// Set stores the regime for a symbol with the cache TTL
func (rc *RedisCache) Set(symbol string, result *Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(result)
	if err != nil {
		rc.logger.Warn().Err(err).Str("symbol", symbol).Msg("regime cache marshal failed")
		return
	}

	if err := rc.client.Set(ctx, redisKeyPrefix+symbol, data, rc.ttl).Err(); err != nil {
		rc.logger.Warn().Err(err).Str("symbol", symbol).Msg("regime cache write failed")
	}
}
