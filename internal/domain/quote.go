package domain

import "github.com/shopspring/decimal"

// Quote is a price breakdown for one service and quantity at one exchange rate.
type Quote struct {
	ServiceID   string          `json:"service_id"`
	Quantity    int64           `json:"quantity"`
	BaseUSD     decimal.Decimal `json:"base_usd"`
	BaseLocal   decimal.Decimal `json:"base_local"`
	MarkupLocal decimal.Decimal `json:"markup_local"`
	AmountLocal decimal.Decimal `json:"amount_local"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	Rate        decimal.Decimal `json:"rate"`
	Currency    string          `json:"currency"`
}
