package service

import (
	"context"

	"github.com/shopspring/decimal"

	"smmpanel/internal/domain"
)

// CatalogFetcher returns a fully validated catalog or an error.
type CatalogFetcher interface {
	Catalog(ctx context.Context) ([]domain.Service, error)
}

type RateFetcher interface {
	Fetch(ctx context.Context) (domain.ExchangeRate, error)
}

type OrderPlacer interface {
	AddOrder(ctx context.Context, serviceID, link string, quantity int64) (string, error)
}

type StatusFetcher interface {
	StatusUpdate(ctx context.Context, orderID string) (domain.OrderStatusUpdate, error)
}

type LedgerClient interface {
	GetBalance(ctx context.Context, userID string) (*domain.Balance, error)
	GetHistory(ctx context.Context, userID string) ([]domain.Deposit, error)
	SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt domain.DepositReceipt) (*domain.Deposit, error)
}
