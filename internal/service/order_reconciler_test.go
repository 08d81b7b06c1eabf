package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

func newReconciler(upstream *mockStatusFetcher, repo *mockOrderRepository, audit *mockAuditLog) *OrderReconciler {
	return NewOrderReconciler(upstream, repo, audit, ReconcilerConfig{Concurrency: 2, BatchSize: 50}, logger.NewNop())
}

func TestReconcile_MergesUpstreamFieldsKeepsCharge(t *testing.T) {
	upstream := &mockStatusFetcher{}
	repo := &mockOrderRepository{}
	audit := &mockAuditLog{}

	update := domain.OrderStatusUpdate{
		Status:           domain.OrderStatusPartial,
		RawStatus:        "Partial",
		Remains:          120,
		StartCount:       4000,
		UpstreamCharge:   decimal.NewNullDecimal(dec("0.78")),
		UpstreamCurrency: "USD",
	}
	upstream.On("StatusUpdate", mock.Anything, "9001").Return(update, nil)
	repo.On("UpdateStatus", "9001", update).Return(nil)
	audit.On("LogAction", domain.EntityTypeOrder, "9001", "user-1", domain.ActionTypeReconcile, mock.Anything).Return(nil)

	order := &domain.Order{OrderID: "9001", UserID: "user-1", Status: domain.OrderStatusPending, ChargeLocal: dec("320")}
	merged, err := newReconciler(upstream, repo, audit).Reconcile(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPartial, merged.Status)
	assert.Equal(t, int64(120), merged.Remains)
	assert.True(t, merged.ChargeLocal.Equal(dec("320")))
	assert.True(t, merged.UpstreamCharge.Decimal.Equal(dec("0.78")))
	assert.Equal(t, domain.OrderStatusPending, order.Status, "input order is not mutated")
	audit.AssertExpectations(t)
}

func TestReconcile_UnchangedStatusIsNotAudited(t *testing.T) {
	upstream := &mockStatusFetcher{}
	repo := &mockOrderRepository{}
	audit := &mockAuditLog{}

	update := domain.OrderStatusUpdate{Status: domain.OrderStatusInProgress, RawStatus: "In progress", Remains: 500}
	upstream.On("StatusUpdate", mock.Anything, "9001").Return(update, nil)
	repo.On("UpdateStatus", "9001", update).Return(nil)

	order := &domain.Order{OrderID: "9001", Status: domain.OrderStatusInProgress, Remains: 800}
	merged, err := newReconciler(upstream, repo, audit).Reconcile(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, int64(500), merged.Remains)
	audit.AssertNotCalled(t, "LogAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileBatch_IsolatesFailures(t *testing.T) {
	upstream := &mockStatusFetcher{}
	repo := &mockOrderRepository{}
	audit := &mockAuditLog{}

	done := domain.OrderStatusUpdate{Status: domain.OrderStatusCompleted, RawStatus: "Completed"}
	upstream.On("StatusUpdate", mock.Anything, "1").Return(done, nil)
	upstream.On("StatusUpdate", mock.Anything, "2").Return(domain.OrderStatusUpdate{}, errors.New("Incorrect order ID"))
	upstream.On("StatusUpdate", mock.Anything, "3").Return(done, nil)
	repo.On("UpdateStatus", mock.Anything, done).Return(nil)
	audit.On("LogAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	orders := []*domain.Order{
		{OrderID: "1", Status: domain.OrderStatusPending},
		{OrderID: "2", Status: domain.OrderStatusPending},
		{OrderID: "3", Status: domain.OrderStatusPending},
	}
	report := newReconciler(upstream, repo, audit).ReconcileBatch(context.Background(), orders)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "order 2")
	repo.AssertNumberOfCalls(t, "UpdateStatus", 2)
}

func TestReconcileUser_SkipsTerminalOrders(t *testing.T) {
	upstream := &mockStatusFetcher{}
	repo := &mockOrderRepository{}
	audit := &mockAuditLog{}

	repo.On("FindByUserID", "user-1").Return([]*domain.Order{
		{OrderID: "1", Status: domain.OrderStatusCompleted},
		{OrderID: "2", Status: domain.OrderStatusInProgress},
		{OrderID: "3", Status: domain.OrderStatusRefunded},
	}, nil)
	update := domain.OrderStatusUpdate{Status: domain.OrderStatusInProgress, RawStatus: "In progress", Remains: 10}
	upstream.On("StatusUpdate", mock.Anything, "2").Return(update, nil)
	repo.On("UpdateStatus", "2", update).Return(nil)

	report, err := newReconciler(upstream, repo, audit).ReconcileUser(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Updated)
	upstream.AssertNumberOfCalls(t, "StatusUpdate", 1)
}

func TestReconciler_RunOncePollsActiveOrders(t *testing.T) {
	upstream := &mockStatusFetcher{}
	repo := &mockOrderRepository{}
	audit := &mockAuditLog{}

	repo.On("FindActive", 50).Return([]*domain.Order{{OrderID: "5", Status: domain.OrderStatusPending}}, nil)
	update := domain.OrderStatusUpdate{Status: domain.OrderStatusPending, RawStatus: "Pending"}
	upstream.On("StatusUpdate", mock.Anything, "5").Return(update, nil)
	repo.On("UpdateStatus", "5", update).Return(nil)

	require.NoError(t, newReconciler(upstream, repo, audit).RunOnce(context.Background()))
	repo.AssertExpectations(t)
}

func TestReconciler_RunOnceReportsRepositoryFailure(t *testing.T) {
	repo := &mockOrderRepository{}
	repo.On("FindActive", 50).Return(nil, errors.New("db closed"))

	err := newReconciler(&mockStatusFetcher{}, repo, &mockAuditLog{}).RunOnce(context.Background())
	assert.Error(t, err)
}
