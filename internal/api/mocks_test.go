package api

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"smmpanel/internal/domain"
	"smmpanel/pkg/fallback"
)

type mockOrderService struct{ mock.Mock }

func (m *mockOrderService) Quote(ctx context.Context, serviceID string, quantity int64) (*domain.Quote, error) {
	args := m.Called(ctx, serviceID, quantity)
	quote, _ := args.Get(0).(*domain.Quote)
	return quote, args.Error(1)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockOrderService) GetUserOrders(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	args := m.Called(ctx, userID, status)
	orders, _ := args.Get(0).([]*domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, userID, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) Reconcile(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockReconciler) ReconcileBatch(ctx context.Context, orders []*domain.Order) domain.ReconcileReport {
	return m.Called(ctx, orders).Get(0).(domain.ReconcileReport)
}

func (m *mockReconciler) ReconcileUser(ctx context.Context, userID string) (domain.ReconcileReport, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.ReconcileReport), args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) ListServices() []domain.Service {
	services, _ := m.Called().Get(0).([]domain.Service)
	return services
}

func (m *mockCatalog) Filter(filter domain.ServiceFilter) []domain.Service {
	services, _ := m.Called(filter).Get(0).([]domain.Service)
	return services
}

func (m *mockCatalog) Service(id string) (domain.Service, bool) {
	args := m.Called(id)
	return args.Get(0).(domain.Service), args.Bool(1)
}

func (m *mockCatalog) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCatalog) RefreshedAt() time.Time {
	return m.Called().Get(0).(time.Time)
}

type mockBalanceService struct{ mock.Mock }

func (m *mockBalanceService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	args := m.Called(ctx, userID)
	balance, _ := args.Get(0).(*domain.Balance)
	return balance, args.Error(1)
}

func (m *mockBalanceService) InvalidateBalance(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockDepositService struct{ mock.Mock }

func (m *mockDepositService) GetHistory(ctx context.Context, userID string) ([]domain.Deposit, error) {
	args := m.Called(ctx, userID)
	deposits, _ := args.Get(0).([]domain.Deposit)
	return deposits, args.Error(1)
}

func (m *mockDepositService) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt domain.DepositReceipt) (*domain.Deposit, error) {
	args := m.Called(ctx, userID, amount, receipt)
	deposit, _ := args.Get(0).(*domain.Deposit)
	return deposit, args.Error(1)
}

type fakeRates struct {
	rate   domain.ExchangeRate
	status fallback.Status
}

func (f fakeRates) Rate(context.Context) domain.ExchangeRate { return f.rate }
func (f fakeRates) Status() fallback.Status { return f.status }

type fakeDatabase struct{ err error }

func (f fakeDatabase) Ping(context.Context) error { return f.err }
func (f fakeDatabase) GetStats() map[string]interface{} {
	return map[string]interface{}{"driver": "sqlite3"}
}

var errDown = errors.New("connection refused")
