package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func svc(rate string) domain.Service {
	return domain.Service{ID: "1", Name: "Followers", UnitRateUSD: dec(rate), MinQuantity: 10, MaxQuantity: 100000}
}

func lkr(rate string) domain.ExchangeRate {
	return domain.ExchangeRate{USDToLocal: dec(rate), Currency: "LKR"}
}

func TestPrice_WorkedExample(t *testing.T) {
	c := NewCalculator(dec("50"))

	q, err := c.Price(svc("0.99"), 1000, lkr("310"))
	require.NoError(t, err)

	assert.Equal(t, "0.99", q.BaseUSD.String())
	assert.Equal(t, "306.9", q.BaseLocal.String())
	assert.Equal(t, "356.90", q.AmountLocal.StringFixed(2))
	assert.Equal(t, "1.1513", q.AmountUSD.String())
	assert.Equal(t, "LKR", q.Currency)
}

func TestPrice_MatchesFormula(t *testing.T) {
	tests := []struct {
		rate, fx string
		qty      int64
		local    string
		usd      string
	}{
		{"0.99", "310", 1000, "356.90", "1.1513"},
		{"1.25", "300.5", 250, "143.91", "0.4789"},
		{"0.001", "310", 10, "50.00", "0.1613"},
		{"12.3456", "298.75", 5000, "18491.24", "61.8954"},
	}

	c := NewCalculator(dec("50"))
	for _, tt := range tests {
		q, err := c.Price(svc(tt.rate), tt.qty, lkr(tt.fx))
		require.NoError(t, err)

		expected := decimal.NewFromInt(tt.qty).Div(decimal.NewFromInt(1000)).
			Mul(dec(tt.rate)).Mul(dec(tt.fx)).Add(dec("50")).Round(2)
		assert.True(t, expected.Equal(q.AmountLocal), "%s != %s", expected, q.AmountLocal)
		assert.Equal(t, tt.local, q.AmountLocal.StringFixed(2))
		assert.Equal(t, tt.usd, q.AmountUSD.StringFixed(4))
	}
}

func TestPrice_USDRoundTripWithinHalfCent(t *testing.T) {
	c := NewCalculator(dec("50"))
	halfCent := dec("0.005")

	for _, fx := range []string{"1", "83.2", "310", "299.99", "1500"} {
		for _, qty := range []int64{10, 999, 1000, 12345} {
			q, err := c.Price(svc("0.77"), qty, lkr(fx))
			require.NoError(t, err)

			back := q.AmountUSD.Mul(dec(fx))
			diff := back.Sub(q.AmountLocal).Abs()
			tolerance := halfCent.Mul(dec(fx)).Div(decimal.NewFromInt(100))
			if tolerance.LessThan(halfCent) {
				tolerance = halfCent
			}
			assert.True(t, diff.LessThanOrEqual(tolerance), "fx=%s qty=%d diff=%s", fx, qty, diff)
		}
	}
}

func TestPrice_MonotonicInQuantity(t *testing.T) {
	c := NewCalculator(dec("50"))

	prev := decimal.Zero
	for qty := int64(10); qty <= 5000; qty += 37 {
		q, err := c.Price(svc("0.4321"), qty, lkr("310"))
		require.NoError(t, err)
		assert.True(t, q.AmountLocal.GreaterThanOrEqual(prev), "qty=%d", qty)
		prev = q.AmountLocal
	}
}

func TestPrice_RoundsHalfAwayFromZero(t *testing.T) {
	c := NewCalculator(dec("0.005"))

	q, err := c.Price(svc("0"), 1000, lkr("1"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", q.AmountLocal.StringFixed(2))
}

func TestPrice_RejectsNonPositiveRate(t *testing.T) {
	c := NewCalculator(dec("50"))

	for _, fx := range []string{"0", "-310"} {
		_, err := c.Price(svc("0.99"), 1000, lkr(fx))
		assert.ErrorIs(t, err, domain.ErrInvalidRate)
	}
}

func TestPrice_DoesNotClampQuantity(t *testing.T) {
	c := NewCalculator(dec("50"))

	q, err := c.Price(svc("1"), 5, lkr("310"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), q.Quantity)
	assert.Equal(t, "51.55", q.AmountLocal.StringFixed(2))
}
