package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Balance mirrors the billing worker's ledger for one user. It is never mutated locally.
type Balance struct {
	UserID         string          `json:"user_id"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	TotalPending   decimal.Decimal `json:"total_pending"`
	FetchedAt      time.Time       `json:"fetched_at"`
}

// Covers reports whether the available balance is enough to pay amount.
func (b Balance) Covers(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(b.TotalAvailable)
}

type Deposit struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	ReceiptURL string          `json:"receipt_url,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type DepositReceipt struct {
	FileName    string
	ContentType string
	Data        []byte
}

type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	InvalidateBalance(ctx context.Context, userID string) error
}

type DepositService interface {
	GetHistory(ctx context.Context, userID string) ([]Deposit, error)
	SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt DepositReceipt) (*Deposit, error)
}
