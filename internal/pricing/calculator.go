// Package pricing turns an upstream per-thousand USD rate into the amount a user is
// charged in local currency.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"smmpanel/internal/domain"
)

var perThousand = decimal.New(1, 3)

// Calculator applies a fixed local-currency markup on top of the converted cost.
type Calculator struct {
	markupLocal decimal.Decimal
}

func NewCalculator(markupLocal decimal.Decimal) *Calculator {
	return &Calculator{markupLocal: markupLocal}
}

func (c *Calculator) Markup() decimal.Decimal {
	return c.markupLocal
}

// Price computes the charge for quantity units of svc at rate. Quantity limits are
// the caller's concern; Price only rejects a non-positive rate.
//
//	baseUSD     = quantity / 1000 * unitRateUSD
//	baseLocal   = baseUSD * rate
//	amountLocal = round2(baseLocal + markup)
//	amountUSD   = round4(amountLocal / rate)
func (c *Calculator) Price(svc domain.Service, quantity int64, rate domain.ExchangeRate) (domain.Quote, error) {
	if !rate.USDToLocal.IsPositive() {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrInvalidRate, rate.USDToLocal)
	}

	baseUSD := decimal.NewFromInt(quantity).Div(perThousand).Mul(svc.UnitRateUSD)
	baseLocal := baseUSD.Mul(rate.USDToLocal)
	amountLocal := baseLocal.Add(c.markupLocal).Round(2)
	amountUSD := amountLocal.DivRound(rate.USDToLocal, 4)

	return domain.Quote{
		ServiceID:   svc.ID,
		Quantity:    quantity,
		BaseUSD:     baseUSD,
		BaseLocal:   baseLocal,
		MarkupLocal: c.markupLocal,
		AmountLocal: amountLocal,
		AmountUSD:   amountUSD,
		Rate:        rate.USDToLocal,
		Currency:    rate.Currency,
	}, nil
}
