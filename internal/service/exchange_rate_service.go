package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smmpanel/internal/concurrent"
	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/fallback"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

type ExchangeRateConfig struct {
	Currency        string
	DefaultRate     decimal.Decimal
	RefreshInterval time.Duration
}

// ExchangeRateService always has a rate to hand out: the last successfully fetched
// one, or the configured default until the first fetch succeeds.
type ExchangeRateService struct {
	fetcher   RateFetcher
	currency  string
	value     *fallback.Value[domain.ExchangeRate]
	cache     cache.Cache
	scheduler *concurrent.Scheduler
	firstMu   sync.Mutex
	logger    logger.Logger
}

func NewExchangeRateService(fetcher RateFetcher, cfg ExchangeRateConfig, cacheInstance cache.Cache, logger logger.Logger) *ExchangeRateService {
	def := domain.ExchangeRate{
		USDToLocal: cfg.DefaultRate,
		Currency:   cfg.Currency,
	}

	s := &ExchangeRateService{
		fetcher:  fetcher,
		currency: cfg.Currency,
		value:    fallback.NewValue(def, fallback.WithValidation(validRate)),
		cache:    cacheInstance,
		logger:   logger.WithFields(map[string]interface{}{"component": "exchange_rate"}),
	}
	s.scheduler = concurrent.NewScheduler("exchange_rate_refresh", cfg.RefreshInterval, s.Refresh, logger)
	metrics.SetExchangeRate(cfg.DefaultRate.InexactFloat64())
	return s
}

func validRate(r domain.ExchangeRate) error {
	if !r.USDToLocal.IsPositive() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRate, r.USDToLocal)
	}
	return nil
}

// Rate never fails. The first call refreshes synchronously if no refresh has been
// attempted yet.
func (s *ExchangeRateService) Rate(ctx context.Context) domain.ExchangeRate {
	if !s.value.Attempted() {
		s.firstMu.Lock()
		if !s.value.Attempted() {
			_ = s.Refresh(ctx)
		}
		s.firstMu.Unlock()
	}

	rate, _ := s.value.Get()
	return rate
}

// Refresh fetches a new rate. A failure keeps the held rate and is returned only for
// reporting.
func (s *ExchangeRateService) Refresh(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "fx.refresh")
	defer span.End()

	start := time.Now()
	err := s.value.Refresh(ctx, s.fetcher.Fetch)
	metrics.RecordExchangeRateRefresh(err)

	rate, source := s.value.Get()
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "Exchange rate refresh failed, keeping previous rate", map[string]interface{}{
			"error":  err.Error(),
			"rate":   rate.USDToLocal.String(),
			"source": source,
		})
		return err
	}

	metrics.SetExchangeRate(rate.USDToLocal.InexactFloat64())
	s.logger.InfoContext(ctx, "Exchange rate refreshed", map[string]interface{}{
		"rate":        rate.USDToLocal.String(),
		"currency":    rate.Currency,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.ExchangeRateCacheKey(s.currency), rate, cache.VeryLongExpiration); err != nil {
			s.logger.Error("Failed to persist exchange rate", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// WarmUp seeds the last known good rate from the cache so a restart with the FX
// source down does not fall back to the default.
func (s *ExchangeRateService) WarmUp(ctx context.Context, c cache.Cache) error {
	var rate domain.ExchangeRate
	if err := c.Get(ctx, cache.ExchangeRateCacheKey(s.currency), &rate); err != nil {
		return err
	}
	if rate.Currency != s.currency {
		return errors.New("cached exchange rate has a different currency")
	}
	if s.value.Restore(rate, rate.FetchedAt) {
		metrics.SetExchangeRate(rate.USDToLocal.InexactFloat64())
		s.logger.Info("Exchange rate restored from cache", map[string]interface{}{
			"rate":       rate.USDToLocal.String(),
			"fetched_at": rate.FetchedAt,
		})
	}
	return nil
}

func (s *ExchangeRateService) Status() fallback.Status {
	return s.value.Status()
}

func (s *ExchangeRateService) Start() {
	s.scheduler.Start()
}

func (s *ExchangeRateService) Stop() {
	s.scheduler.Stop()
}

func (s *ExchangeRateService) GetStats() concurrent.Stats {
	return s.scheduler.GetStats()
}
