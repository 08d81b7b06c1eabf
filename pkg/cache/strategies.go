package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"smmpanel/pkg/logger"
)

// Cache key constants
const (
	BalancePrefix    = "balance"
	BalanceByUserKey = "balance:user:%s"

	DepositPrefix     = "deposit"
	DepositHistoryKey = "deposit:history:user:%s"

	CatalogSnapshotKey = "catalog:snapshot"
	ExchangeRateKey    = "fx:rate:%s"
)

// Cache expiration times
const (
	ShortExpiration    = 30 * time.Second // balances, deposit history
	MediumExpiration   = 30 * time.Minute
	LongExpiration     = 2 * time.Hour
	VeryLongExpiration = 24 * time.Hour // snapshots restored on startup
)

// CacheStrategy defines the caching patterns used by the services.
type CacheStrategy interface {
	// ReadThrough checks the cache first and on a miss fetches from source and caches it.
	ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func(ctx context.Context) (interface{}, error), expiration time.Duration) error

	// WriteThrough writes to the source first and then refreshes the cache.
	WriteThrough(ctx context.Context, key string, value interface{}, writeFunc func(ctx context.Context, value interface{}) error, expiration time.Duration) error
}

// CacheManager implements CacheStrategy on top of a Cache.
type CacheManager struct {
	cache  Cache
	logger logger.Logger
}

func NewCacheManager(cache Cache, logger logger.Logger) CacheStrategy {
	return &CacheManager{
		cache:  cache,
		logger: logger,
	}
}

// ReadThrough implements read-through caching pattern. Cache failures degrade to a
// source read, source failures are returned untouched.
func (cm *CacheManager) ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func(ctx context.Context) (interface{}, error), expiration time.Duration) error {
	err := cm.cache.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrCacheMiss) {
		cm.logger.Error("Cache error in read-through", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	data, err := fetchFunc(ctx)
	if err != nil {
		return err
	}

	if err := cm.cache.Set(ctx, key, data, expiration); err != nil {
		cm.logger.Error("Cache set error in read-through", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return copyData(data, dest)
}

// WriteThrough implements write-through caching pattern
func (cm *CacheManager) WriteThrough(ctx context.Context, key string, value interface{}, writeFunc func(ctx context.Context, value interface{}) error, expiration time.Duration) error {
	if err := writeFunc(ctx, value); err != nil {
		cm.logger.Error("Source write error in write-through", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}

	if err := cm.cache.Set(ctx, key, value, expiration); err != nil {
		cm.logger.Error("Cache set error in write-through", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return nil
}

func BalanceCacheKey(userID string) string {
	return fmt.Sprintf(BalanceByUserKey, userID)
}

func DepositHistoryCacheKey(userID string) string {
	return fmt.Sprintf(DepositHistoryKey, userID)
}

func ExchangeRateCacheKey(currency string) string {
	return fmt.Sprintf(ExchangeRateKey, currency)
}

// InvalidateBalanceCache drops everything derived from the user's ledger.
func InvalidateBalanceCache(ctx context.Context, cache Cache, userID string) error {
	return cache.DeleteMultiple(ctx, []string{
		BalanceCacheKey(userID),
		DepositHistoryCacheKey(userID),
	})
}

func copyData(src, dest interface{}) error {
	switch d := dest.(type) {
	case *interface{}:
		*d = src
		return nil
	default:
		data, err := json.Marshal(src)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, dest)
	}
}
