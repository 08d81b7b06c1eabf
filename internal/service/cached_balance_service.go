package service

import (
	"context"

	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
)

// CachedBalanceService serves balance reads for display through a short-lived cache.
type CachedBalanceService struct {
	balanceService domain.BalanceService
	cache          cache.Cache
	cacheManager   cache.CacheStrategy
	logger         logger.Logger
}

func NewCachedBalanceService(
	balanceService domain.BalanceService,
	cacheInstance cache.Cache,
	cacheManager cache.CacheStrategy,
	logger logger.Logger,
) domain.BalanceService {
	return &CachedBalanceService{
		balanceService: balanceService,
		cache:          cacheInstance,
		cacheManager:   cacheManager,
		logger:         logger,
	}
}

func (s *CachedBalanceService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	var balance domain.Balance
	err := s.cacheManager.ReadThrough(ctx, cache.BalanceCacheKey(userID), &balance, func(ctx context.Context) (interface{}, error) {
		return s.balanceService.GetBalance(ctx, userID)
	}, cache.ShortExpiration)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *CachedBalanceService) InvalidateBalance(ctx context.Context, userID string) error {
	if err := cache.InvalidateBalanceCache(ctx, s.cache, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error invalidating balance cache", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return err
	}
	return nil
}
