package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
)

func sampleCatalog() []domain.Service {
	return []domain.Service{
		{ID: "10", Name: "YouTube Views", Category: "YouTube", UnitRateUSD: dec("1.2"), MinQuantity: 100, MaxQuantity: 100000},
		{ID: "2", Name: "Instagram Likes", Category: "Instagram", UnitRateUSD: dec("0.35"), MinQuantity: 50, MaxQuantity: 50000},
		{ID: "7", Name: "Instagram Followers", Category: "Instagram", UnitRateUSD: dec("0.9"), MinQuantity: 100, MaxQuantity: 10000},
	}
}

func TestCatalog_FailedRefreshKeepsSnapshot(t *testing.T) {
	fetcher := &mockCatalogFetcher{}
	fetcher.On("Catalog", mock.Anything).Return(sampleCatalog(), nil).Once()
	fetcher.On("Catalog", mock.Anything).Return(nil, errors.New("record 3: malformed service record")).Once()
	fetcher.On("Catalog", mock.Anything).Return([]domain.Service{}, nil).Once()

	s := NewCatalogService(fetcher, nil, 0, logger.NewNop())
	require.NoError(t, s.Refresh(context.Background()))
	refreshedAt := s.RefreshedAt()

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	assert.Len(t, s.ListServices(), 3)

	err = s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	assert.Len(t, s.ListServices(), 3)
	assert.Equal(t, refreshedAt, s.RefreshedAt())

	svc, ok := s.Service("7")
	require.True(t, ok)
	assert.Equal(t, "Instagram Followers", svc.Name)
}

type failingStrategy struct{ err error }

func (f failingStrategy) ReadThrough(context.Context, string, interface{}, func(context.Context) (interface{}, error), time.Duration) error {
	return f.err
}

func (f failingStrategy) WriteThrough(context.Context, string, interface{}, func(context.Context, interface{}) error, time.Duration) error {
	return f.err
}

func TestCatalog_StoreFailureIsReported(t *testing.T) {
	fetcher := &mockCatalogFetcher{}
	fetcher.On("Catalog", mock.Anything).Return(sampleCatalog(), nil)
	storeErr := errors.New("snapshot store down")

	s := NewCatalogService(fetcher, failingStrategy{err: storeErr}, 0, logger.NewNop())
	err := s.Refresh(context.Background())

	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, s.ListServices())
	assert.True(t, s.RefreshedAt().IsZero())
}

func TestCatalog_EmptyBeforeFirstRefresh(t *testing.T) {
	s := NewCatalogService(&mockCatalogFetcher{}, nil, 0, logger.NewNop())
	assert.Empty(t, s.ListServices())
	assert.True(t, s.RefreshedAt().IsZero())
	_, ok := s.Service("1")
	assert.False(t, ok)
}

func TestCatalog_FilterAndSort(t *testing.T) {
	fetcher := &mockCatalogFetcher{}
	fetcher.On("Catalog", mock.Anything).Return(sampleCatalog(), nil)
	s := NewCatalogService(fetcher, nil, 0, logger.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	instagram := s.Filter(domain.ServiceFilter{Category: "instagram", Sort: "rate"})
	require.Len(t, instagram, 2)
	assert.Equal(t, "2", instagram[0].ID)
	assert.Equal(t, "7", instagram[1].ID)

	byID := s.Filter(domain.ServiceFilter{Sort: "id"})
	assert.Equal(t, []string{"2", "7", "10"}, ids(byID))

	expensive := s.Filter(domain.ServiceFilter{Sort: "-rate"})
	assert.Equal(t, "10", expensive[0].ID)

	search := s.Filter(domain.ServiceFilter{Query: "FOLLOW"})
	assert.Equal(t, []string{"7"}, ids(search))

	assert.Equal(t, []string{"YouTube", "Instagram"}, s.Categories())
}

func TestCatalog_SnapshotSurvivesRestart(t *testing.T) {
	c := cache.NewMemoryCache()
	manager := cache.NewCacheManager(c, logger.NewNop())

	fetcher := &mockCatalogFetcher{}
	fetcher.On("Catalog", mock.Anything).Return(sampleCatalog(), nil)
	require.NoError(t, NewCatalogService(fetcher, manager, 0, logger.NewNop()).Refresh(context.Background()))

	restarted := NewCatalogService(&mockCatalogFetcher{}, manager, 0, logger.NewNop())
	require.NoError(t, restarted.WarmUp(context.Background(), c))

	assert.Len(t, restarted.ListServices(), 3)
	svc, ok := restarted.Service("2")
	require.True(t, ok)
	assert.True(t, svc.UnitRateUSD.Equal(dec("0.35")))
	assert.False(t, restarted.RefreshedAt().IsZero())
}

func ids(services []domain.Service) []string {
	out := make([]string, 0, len(services))
	for _, s := range services {
		out = append(out, s.ID)
	}
	return out
}
