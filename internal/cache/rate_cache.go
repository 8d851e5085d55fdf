package cache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"parking-service/internal/domain/parking"
	"parking-service/internal/metrics"
)

var ratesKey = []byte("rates")

type RateStore interface {
	AllRates(ctx context.Context) (parking.RateTable, error)
	UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error
}

// RateCache keeps the whole rate table in freecache. Writes go through to
// the underlying store and drop the cached copy.
type RateCache struct {
	next    RateStore
	cache   *freecache.Cache
	ttl     int
	metrics metrics.Recorder
	log     zerolog.Logger
}

func NewRateCache(next RateStore, sizeMB int, ttl time.Duration, m metrics.Recorder, log zerolog.Logger) *RateCache {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &RateCache{
		next:    next,
		cache:   freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:     max(int(ttl.Seconds()), 1),
		metrics: m,
		log:     log,
	}
}

func (c *RateCache) AllRates(ctx context.Context) (parking.RateTable, error) {
	if raw, err := c.cache.Get(ratesKey); err == nil {
		var rates parking.RateTable
		decodeErr := json.Unmarshal(raw, &rates)
		if decodeErr == nil {
			c.metrics.IncCacheHits()
			return rates, nil
		}
		c.log.Warn().Err(decodeErr).Msg("discarding unreadable cached rate table")
		c.cache.Del(ratesKey)
	}

	c.metrics.IncCacheMisses()
	rates, err := c.next.AllRates(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(rates)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to encode rate table for cache")
		return rates, nil
	}
	if err := c.cache.Set(ratesKey, raw, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("failed to cache rate table")
	}
	return rates, nil
}

func (c *RateCache) UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error {
	if err := c.next.UpsertRate(ctx, street, rate); err != nil {
		return err
	}
	c.cache.Del(ratesKey)
	return nil
}
