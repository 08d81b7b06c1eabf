package service

import (
	"context"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

// BalanceService reads balances straight from the billing ledger. Order placement
// uses it so the sufficiency check never runs against a cached figure.
type BalanceService struct {
	ledger LedgerClient
	logger logger.Logger
}

func NewBalanceService(ledger LedgerClient, logger logger.Logger) domain.BalanceService {
	return &BalanceService{
		ledger: ledger,
		logger: logger,
	}
}

func (s *BalanceService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Balance lookup failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}
	return balance, nil
}

// InvalidateBalance is a no-op: nothing is held locally.
func (s *BalanceService) InvalidateBalance(context.Context, string) error {
	return nil
}
