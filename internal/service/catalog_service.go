package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"smmpanel/internal/concurrent"
	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

type catalogSnapshot struct {
	Services    []domain.Service `json:"services"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

// CatalogService keeps the last successfully fetched catalog in memory. Reads are
// served from that snapshot; a failed refresh leaves it untouched.
type CatalogService struct {
	fetcher      CatalogFetcher
	cacheManager cache.CacheStrategy
	scheduler    *concurrent.Scheduler
	logger       logger.Logger

	mutex    sync.RWMutex
	snapshot catalogSnapshot
	byID     map[string]domain.Service
}

// NewCatalogService builds the service. cacheManager may be nil, in which case the
// snapshot is not persisted.
func NewCatalogService(fetcher CatalogFetcher, cacheManager cache.CacheStrategy, refreshInterval time.Duration, logger logger.Logger) *CatalogService {
	s := &CatalogService{
		fetcher:      fetcher,
		cacheManager: cacheManager,
		logger:       logger.WithFields(map[string]interface{}{"component": "catalog"}),
		byID:         map[string]domain.Service{},
	}
	s.scheduler = concurrent.NewScheduler("catalog_refresh", refreshInterval, s.Refresh, logger)
	return s
}

func (s *CatalogService) Refresh(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "catalog.refresh")
	defer span.End()

	services, err := s.fetcher.Catalog(ctx)
	if err == nil && len(services) == 0 {
		err = fmt.Errorf("%w: upstream returned an empty catalog", domain.ErrCatalogFetch)
	} else if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrCatalogFetch, err)
	}
	if err != nil {
		metrics.RecordCatalogRefresh(err, 0)
		tracing.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "Catalog refresh failed, keeping previous snapshot", map[string]interface{}{
			"error":    err.Error(),
			"services": len(s.ListServices()),
		})
		return err
	}

	snapshot := catalogSnapshot{Services: services, RefreshedAt: time.Now().UTC()}
	if s.cacheManager == nil {
		s.swap(snapshot)
	} else {
		err := s.cacheManager.WriteThrough(ctx, cache.CatalogSnapshotKey, snapshot, func(context.Context, interface{}) error {
			s.swap(snapshot)
			return nil
		}, cache.VeryLongExpiration)
		if err != nil {
			err = fmt.Errorf("store catalog snapshot: %w", err)
			metrics.RecordCatalogRefresh(err, 0)
			tracing.RecordError(ctx, err)
			s.logger.ErrorContext(ctx, "Catalog snapshot not stored, keeping previous snapshot", map[string]interface{}{
				"services": len(services),
				"error":    err.Error(),
			})
			return err
		}
	}

	metrics.RecordCatalogRefresh(nil, len(services))
	s.logger.InfoContext(ctx, "Catalog refreshed", map[string]interface{}{
		"services": len(services),
	})
	return nil
}

func (s *CatalogService) swap(snapshot catalogSnapshot) {
	byID := make(map[string]domain.Service, len(snapshot.Services))
	for _, svc := range snapshot.Services {
		byID[svc.ID] = svc
	}

	s.mutex.Lock()
	s.snapshot = snapshot
	s.byID = byID
	s.mutex.Unlock()
}

func (s *CatalogService) ListServices() []domain.Service {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.snapshot.Services)
}

func (s *CatalogService) Service(id string) (domain.Service, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	svc, ok := s.byID[id]
	return svc, ok
}

func (s *CatalogService) RefreshedAt() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.snapshot.RefreshedAt
}

// Filter narrows the snapshot by category and a case-insensitive query over id and
// name, then sorts by "name", "rate", "-rate" or "id". Unknown sorts keep upstream order.
func (s *CatalogService) Filter(filter domain.ServiceFilter) []domain.Service {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	var out []domain.Service
	for _, svc := range s.ListServices() {
		if filter.Category != "" && !strings.EqualFold(svc.Category, filter.Category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(svc.Name), query) && svc.ID != query {
			continue
		}
		out = append(out, svc)
	}

	switch filter.Sort {
	case "name":
		slices.SortStableFunc(out, func(a, b domain.Service) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case "rate":
		slices.SortStableFunc(out, func(a, b domain.Service) int {
			return a.UnitRateUSD.Cmp(b.UnitRateUSD)
		})
	case "-rate":
		slices.SortStableFunc(out, func(a, b domain.Service) int {
			return b.UnitRateUSD.Cmp(a.UnitRateUSD)
		})
	case "id":
		slices.SortStableFunc(out, compareIDs)
	}
	return out
}

// compareIDs orders numeric ids numerically and falls back to string order.
func compareIDs(a, b domain.Service) int {
	ai, aErr := strconv.ParseInt(a.ID, 10, 64)
	bi, bErr := strconv.ParseInt(b.ID, 10, 64)
	if aErr == nil && bErr == nil {
		return cmp.Compare(ai, bi)
	}
	return strings.Compare(a.ID, b.ID)
}

// Categories returns the distinct categories in upstream order.
func (s *CatalogService) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, svc := range s.ListServices() {
		if svc.Category == "" || seen[svc.Category] {
			continue
		}
		seen[svc.Category] = true
		out = append(out, svc.Category)
	}
	return out
}

// WarmUp restores the persisted snapshot if nothing newer has been fetched yet.
func (s *CatalogService) WarmUp(ctx context.Context, c cache.Cache) error {
	var snapshot catalogSnapshot
	if err := c.Get(ctx, cache.CatalogSnapshotKey, &snapshot); err != nil {
		return err
	}
	if len(snapshot.Services) == 0 {
		return nil
	}
	if !s.RefreshedAt().IsZero() && !snapshot.RefreshedAt.After(s.RefreshedAt()) {
		return nil
	}

	s.swap(snapshot)
	metrics.RecordCatalogRefresh(nil, len(snapshot.Services))
	s.logger.Info("Catalog restored from cache", map[string]interface{}{
		"services":     len(snapshot.Services),
		"refreshed_at": snapshot.RefreshedAt,
	})
	return nil
}

func (s *CatalogService) Start() {
	s.scheduler.Start()
}

func (s *CatalogService) Stop() {
	s.scheduler.Stop()
}

func (s *CatalogService) GetStats() concurrent.Stats {
	return s.scheduler.GetStats()
}
