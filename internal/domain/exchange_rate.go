package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate converts USD to the storefront's local currency.
// FetchedAt is zero when the value is the configured default.
type ExchangeRate struct {
	USDToLocal decimal.Decimal `json:"usd_to_local"`
	Currency   string          `json:"currency"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

func (r ExchangeRate) IsDefault() bool {
	return r.FetchedAt.IsZero()
}

type ExchangeRateService interface {
	Rate(ctx context.Context) ExchangeRate
	Refresh(ctx context.Context) error
}
