package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
)

const maxReceiptSize = 5 << 20

var receiptContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// DepositService forwards deposit requests to the billing worker. Crediting is the
// worker's job; this service only validates, audits and drops stale cached figures.
type DepositService struct {
	ledger       LedgerClient
	balances     domain.BalanceService
	cacheManager cache.CacheStrategy
	auditLog     domain.AuditLogService
	logger       logger.Logger
}

func NewDepositService(
	ledger LedgerClient,
	balances domain.BalanceService,
	cacheManager cache.CacheStrategy,
	auditLog domain.AuditLogService,
	logger logger.Logger,
) domain.DepositService {
	return &DepositService{
		ledger:       ledger,
		balances:     balances,
		cacheManager: cacheManager,
		auditLog:     auditLog,
		logger:       logger,
	}
}

func (s *DepositService) GetHistory(ctx context.Context, userID string) ([]domain.Deposit, error) {
	var deposits []domain.Deposit
	err := s.cacheManager.ReadThrough(ctx, cache.DepositHistoryCacheKey(userID), &deposits, func(ctx context.Context) (interface{}, error) {
		return s.ledger.GetHistory(ctx, userID)
	}, cache.ShortExpiration)
	if err != nil {
		s.logger.WarnContext(ctx, "Deposit history lookup failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}
	return deposits, nil
}

func (s *DepositService) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt domain.DepositReceipt) (*domain.Deposit, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: at most two decimal places", domain.ErrInvalidAmount)
	}
	if err := validateReceipt(receipt); err != nil {
		return nil, err
	}

	deposit, err := s.ledger.SubmitDeposit(ctx, userID, amount, receipt)
	if errors.Is(err, domain.ErrDepositRejected) {
		s.logger.WarnContext(ctx, "Deposit rejected by billing", map[string]interface{}{
			"user_id": userID,
			"amount":  amount.String(),
			"error":   err.Error(),
		})
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Deposit submission failed", map[string]interface{}{
			"user_id": userID,
			"amount":  amount.String(),
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("deposit submission failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Deposit submitted", map[string]interface{}{
		"user_id":    userID,
		"deposit_id": deposit.ID,
		"amount":     amount.String(),
	})

	details := fmt.Sprintf("Deposit of %s submitted for review", amount.StringFixed(2))
	if err := s.auditLog.LogAction(domain.EntityTypeDeposit, deposit.ID, userID, domain.ActionTypeCreate, details); err != nil {
		s.logger.ErrorContext(ctx, "Failed to audit deposit", map[string]interface{}{
			"deposit_id": deposit.ID,
			"error":      err.Error(),
		})
	}

	_ = s.balances.InvalidateBalance(ctx, userID)

	return deposit, nil
}

func validateReceipt(receipt domain.DepositReceipt) error {
	if len(receipt.Data) == 0 {
		return fmt.Errorf("%w: empty file", domain.ErrInvalidReceipt)
	}
	if len(receipt.Data) > maxReceiptSize {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidReceipt, maxReceiptSize)
	}
	if !receiptContentTypes[receipt.ContentType] {
		return fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidReceipt, receipt.ContentType)
	}
	return nil
}
