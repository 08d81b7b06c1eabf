package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]OrderStatus{
		"Pending":             OrderStatusPending,
		"pending":             OrderStatusPending,
		"In progress":         OrderStatusInProgress,
		"in_progress":         OrderStatusInProgress,
		"Processing":          OrderStatusInProgress,
		"Completed":           OrderStatusCompleted,
		"COMPLETE":            OrderStatusCompleted,
		"Partial":             OrderStatusPartial,
		"Partially completed": OrderStatusPartial,
		"Canceled":            OrderStatusCanceled,
		"Cancelled":           OrderStatusCanceled,
		"Refunded":            OrderStatusRefunded,
		"Awaiting":            OrderStatusUnknown,
		"":                    OrderStatusUnknown,
		"  ":                  OrderStatusUnknown,
	}

	for raw, want := range tests {
		assert.Equal(t, want, NormalizeStatus(raw), raw)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusPartial, OrderStatusCanceled, OrderStatusRefunded} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range ActiveOrderStatuses {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestOrderStatusUpdate_ApplyKeepsCharge(t *testing.T) {
	o := &Order{
		OrderID:     "1",
		ChargeLocal: decimal.RequireFromString("356.90"),
		Status:      OrderStatusPending,
	}
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	OrderStatusUpdate{
		Status:         OrderStatusCompleted,
		RawStatus:      "Completed",
		UpstreamCharge: decimal.NewNullDecimal(decimal.RequireFromString("0.99")),
	}.Apply(o, at)

	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.Equal(t, "356.9", o.ChargeLocal.String())
	assert.True(t, o.UpstreamCharge.Valid)
	assert.Equal(t, at, o.UpdatedAt)
}

func TestService_AcceptsQuantity(t *testing.T) {
	s := Service{MinQuantity: 100, MaxQuantity: 1000}

	assert.True(t, s.AcceptsQuantity(100))
	assert.True(t, s.AcceptsQuantity(1000))
	assert.False(t, s.AcceptsQuantity(99))
	assert.False(t, s.AcceptsQuantity(1001))
}

func TestBalance_Covers(t *testing.T) {
	b := Balance{TotalAvailable: decimal.RequireFromString("356.90")}

	assert.True(t, b.Covers(decimal.RequireFromString("356.90")))
	assert.False(t, b.Covers(decimal.RequireFromString("356.91")))
}
