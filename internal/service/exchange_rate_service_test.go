package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
)

var errMalformed = errors.New("malformed exchange rate payload")

func newRateService(fetcher RateFetcher, c cache.Cache) *ExchangeRateService {
	return NewExchangeRateService(fetcher, ExchangeRateConfig{
		Currency:    "LKR",
		DefaultRate: dec("310"),
	}, c, logger.NewNop())
}

func lkr(rate string) domain.ExchangeRate {
	return domain.ExchangeRate{USDToLocal: dec(rate), Currency: "LKR", FetchedAt: time.Now().UTC()}
}

func TestExchangeRate_DefaultWhenFirstFetchFails(t *testing.T) {
	fetcher := &mockRateFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(domain.ExchangeRate{}, errMalformed)

	s := newRateService(fetcher, nil)
	rate := s.Rate(context.Background())

	assert.True(t, rate.USDToLocal.Equal(dec("310")))
	assert.True(t, rate.IsDefault())
	assert.Equal(t, "default", s.Status().Source)
	assert.Equal(t, errMalformed.Error(), s.Status().LastError)

	s.Rate(context.Background())
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestExchangeRate_FailedRefreshKeepsLastKnownGood(t *testing.T) {
	fetcher := &mockRateFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(lkr("300"), nil).Once()
	fetcher.On("Fetch", mock.Anything).Return(domain.ExchangeRate{}, errMalformed)

	s := newRateService(fetcher, nil)
	require.True(t, s.Rate(context.Background()).USDToLocal.Equal(dec("300")))

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, errMalformed)
	assert.True(t, s.Rate(context.Background()).USDToLocal.Equal(dec("300")))
	assert.Equal(t, "last_known_good", s.Status().Source)
}

func TestExchangeRate_RejectsNonPositiveRate(t *testing.T) {
	fetcher := &mockRateFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(lkr("0"), nil)

	s := newRateService(fetcher, nil)
	err := s.Refresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidRate)
	assert.True(t, s.Rate(context.Background()).USDToLocal.Equal(dec("310")))
}

func TestExchangeRate_ConcurrentFirstUseFetchesOnce(t *testing.T) {
	fetcher := &mockRateFetcher{}
	fetcher.On("Fetch", mock.Anything).Return(lkr("305.5"), nil)
	s := newRateService(fetcher, nil)

	done := make(chan domain.ExchangeRate, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- s.Rate(context.Background()) }()
	}
	for i := 0; i < 8; i++ {
		assert.True(t, (<-done).USDToLocal.Equal(dec("305.5")))
	}
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestExchangeRate_PersistsAndRestoresFromCache(t *testing.T) {
	c := cache.NewMemoryCache()

	good := &mockRateFetcher{}
	good.On("Fetch", mock.Anything).Return(lkr("299.25"), nil)
	require.NoError(t, newRateService(good, c).Refresh(context.Background()))

	down := &mockRateFetcher{}
	down.On("Fetch", mock.Anything).Return(domain.ExchangeRate{}, fmt.Errorf("dial tcp: %w", context.DeadlineExceeded))
	restarted := newRateService(down, c)
	require.NoError(t, restarted.WarmUp(context.Background(), c))

	rate := restarted.Rate(context.Background())
	assert.True(t, rate.USDToLocal.Equal(dec("299.25")))
	assert.False(t, rate.IsDefault())
	down.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestExchangeRate_WarmUpMissIsReported(t *testing.T) {
	s := newRateService(&mockRateFetcher{}, nil)
	err := s.WarmUp(context.Background(), cache.NewMemoryCache())
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
