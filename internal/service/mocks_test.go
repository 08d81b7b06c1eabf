package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"smmpanel/internal/domain"
)

type mockCatalogFetcher struct{ mock.Mock }

func (m *mockCatalogFetcher) Catalog(ctx context.Context) ([]domain.Service, error) {
	args := m.Called(ctx)
	services, _ := args.Get(0).([]domain.Service)
	return services, args.Error(1)
}

type mockRateFetcher struct{ mock.Mock }

func (m *mockRateFetcher) Fetch(ctx context.Context) (domain.ExchangeRate, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.ExchangeRate), args.Error(1)
}

type mockOrderPlacer struct{ mock.Mock }

func (m *mockOrderPlacer) AddOrder(ctx context.Context, serviceID, link string, quantity int64) (string, error) {
	args := m.Called(ctx, serviceID, link, quantity)
	return args.String(0), args.Error(1)
}

type mockStatusFetcher struct{ mock.Mock }

func (m *mockStatusFetcher) StatusUpdate(ctx context.Context, orderID string) (domain.OrderStatusUpdate, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(domain.OrderStatusUpdate), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	args := m.Called(ctx, userID)
	balance, _ := args.Get(0).(*domain.Balance)
	return balance, args.Error(1)
}

func (m *mockLedger) GetHistory(ctx context.Context, userID string) ([]domain.Deposit, error) {
	args := m.Called(ctx, userID)
	deposits, _ := args.Get(0).([]domain.Deposit)
	return deposits, args.Error(1)
}

func (m *mockLedger) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt domain.DepositReceipt) (*domain.Deposit, error) {
	args := m.Called(ctx, userID, amount, receipt)
	deposit, _ := args.Get(0).(*domain.Deposit)
	return deposit, args.Error(1)
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

type mockOrderRepository struct{ mock.Mock }

func (m *mockOrderRepository) FindByID(orderID string) (*domain.Order, error) {
	args := m.Called(orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockOrderRepository) FindByUserID(userID string) ([]*domain.Order, error) {
	args := m.Called(userID)
	orders, _ := args.Get(0).([]*domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderRepository) FindActive(limit int) ([]*domain.Order, error) {
	args := m.Called(limit)
	orders, _ := args.Get(0).([]*domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderRepository) Create(order *domain.Order) error {
	return m.Called(order).Error(0)
}

func (m *mockOrderRepository) UpdateStatus(orderID string, update domain.OrderStatusUpdate) error {
	return m.Called(orderID, update).Error(0)
}

type mockAuditLog struct{ mock.Mock }

func (m *mockAuditLog) LogAction(entityType domain.EntityType, entityID, userID string, action domain.ActionType, details string) error {
	return m.Called(entityType, entityID, userID, action, details).Error(0)
}

func (m *mockAuditLog) GetEntityLogs(entityType domain.EntityType, entityID string) ([]*domain.AuditLog, error) {
	args := m.Called(entityType, entityID)
	logs, _ := args.Get(0).([]*domain.AuditLog)
	return logs, args.Error(1)
}

func (m *mockAuditLog) GetAllLogs(page, pageSize int) ([]*domain.AuditLog, error) {
	args := m.Called(page, pageSize)
	logs, _ := args.Get(0).([]*domain.AuditLog)
	return logs, args.Error(1)
}

// fixedRates is an ExchangeRateService that always returns the same rate.
type fixedRates struct{ rate domain.ExchangeRate }

func (f fixedRates) Rate(context.Context) domain.ExchangeRate { return f.rate }
func (f fixedRates) Refresh(context.Context) error { return nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
