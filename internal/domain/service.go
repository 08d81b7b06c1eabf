package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service is a sellable catalog entry as published by the upstream reseller.
// UnitRateUSD is the price of 1000 units.
type Service struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Type        string          `json:"type,omitempty"`
	UnitRateUSD decimal.Decimal `json:"unit_rate_usd"`
	MinQuantity int64           `json:"min_quantity"`
	MaxQuantity int64           `json:"max_quantity"`
	Refill      bool            `json:"refill"`
	Cancel      bool            `json:"cancel"`
}

// AcceptsQuantity reports whether quantity lies within [MinQuantity, MaxQuantity].
func (s Service) AcceptsQuantity(quantity int64) bool {
	return quantity >= s.MinQuantity && quantity <= s.MaxQuantity
}

type ServiceFilter struct {
	Category string
	Query    string
	Sort     string
}

type CatalogService interface {
	ListServices() []Service
	Filter(filter ServiceFilter) []Service
	Service(id string) (Service, bool)
	Refresh(ctx context.Context) error
	RefreshedAt() time.Time
}
