package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusInProgress OrderStatus = "In progress"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusPartial    OrderStatus = "Partial"
	OrderStatusCanceled   OrderStatus = "Canceled"
	OrderStatusRefunded   OrderStatus = "Refunded"
	OrderStatusUnknown    OrderStatus = "Unknown"
)

// Keyword order matters: "partially completed" is a partial order, not a completed one.
var statusKeywords = []struct {
	keyword string
	status  OrderStatus
}{
	{"partial", OrderStatusPartial},
	{"refund", OrderStatusRefunded},
	{"cancel", OrderStatusCanceled},
	{"complete", OrderStatusCompleted},
	{"progress", OrderStatusInProgress},
	{"process", OrderStatusInProgress},
	{"pending", OrderStatusPending},
}

// NormalizeStatus buckets an upstream status string by keyword. Strings that match no
// bucket are reported as OrderStatusUnknown; callers keep the raw value alongside.
func NormalizeStatus(raw string) OrderStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return OrderStatusUnknown
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	for _, kw := range statusKeywords {
		if strings.Contains(s, kw.keyword) {
			return kw.status
		}
	}
	return OrderStatusUnknown
}

// IsTerminal reports whether upstream will no longer change the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusPartial, OrderStatusCanceled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

var ActiveOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusUnknown,
}

// Order is a placed order. ChargeLocal is what the user was billed at submission time
// and is never rewritten; upstream-reported charges live in UpstreamCharge.
type Order struct {
	OrderID          string              `json:"order_id"`
	UserID           string              `json:"user_id"`
	ServiceID        string              `json:"service_id"`
	ServiceName      string              `json:"service_name"`
	Link             string              `json:"link"`
	Quantity         int64               `json:"quantity"`
	ChargeLocal      decimal.Decimal     `json:"charge_local"`
	ChargeUSD        decimal.Decimal     `json:"charge_usd"`
	ExchangeRate     decimal.Decimal     `json:"exchange_rate"`
	Status           OrderStatus         `json:"status"`
	RawStatus        string              `json:"raw_status,omitempty"`
	Remains          int64               `json:"remains"`
	StartCount       int64               `json:"start_count"`
	UpstreamCharge   decimal.NullDecimal `json:"upstream_charge"`
	UpstreamCurrency string              `json:"upstream_currency,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderStatusUpdate is the set of fields the reconciler is allowed to change.
type OrderStatusUpdate struct {
	Status           OrderStatus
	RawStatus        string
	Remains          int64
	StartCount       int64
	UpstreamCharge   decimal.NullDecimal
	UpstreamCurrency string
}

// Apply merges the update into o without touching the billed charge.
func (u OrderStatusUpdate) Apply(o *Order, at time.Time) {
	o.Status = u.Status
	o.RawStatus = u.RawStatus
	o.Remains = u.Remains
	o.StartCount = u.StartCount
	o.UpstreamCharge = u.UpstreamCharge
	o.UpstreamCurrency = u.UpstreamCurrency
	o.UpdatedAt = at
}

type OrderRepository interface {
	FindByID(orderID string) (*Order, error)
	FindByUserID(userID string) ([]*Order, error)
	FindActive(limit int) ([]*Order, error)
	Create(order *Order) error
	UpdateStatus(orderID string, update OrderStatusUpdate) error
}

type PlaceOrderRequest struct {
	UserID    string
	ServiceID string
	Quantity  int64
	Link      string
}

type OrderService interface {
	Quote(ctx context.Context, serviceID string, quantity int64) (*Quote, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error)
	GetUserOrders(ctx context.Context, userID string, status OrderStatus) ([]*Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*Order, error)
}

type ReconcileReport struct {
	Checked int      `json:"checked"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type OrderReconciler interface {
	Reconcile(ctx context.Context, order *Order) (*Order, error)
	ReconcileBatch(ctx context.Context, orders []*Order) ReconcileReport
	ReconcileUser(ctx context.Context, userID string) (ReconcileReport, error)
}
