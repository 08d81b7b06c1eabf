package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"smmpanel/internal/concurrent"
	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

type ReconcilerConfig struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// OrderReconciler pulls order status from the upstream panel and merges it into the
// stored orders. One order failing never stops the others.
type OrderReconciler struct {
	upstream    StatusFetcher
	repo        domain.OrderRepository
	auditLog    domain.AuditLogService
	concurrency int
	batchSize   int
	scheduler   *concurrent.Scheduler
	logger      logger.Logger
	now         func() time.Time
}

func NewOrderReconciler(
	upstream StatusFetcher,
	repo domain.OrderRepository,
	auditLog domain.AuditLogService,
	cfg ReconcilerConfig,
	logger logger.Logger,
) *OrderReconciler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 200
	}

	r := &OrderReconciler{
		upstream:    upstream,
		repo:        repo,
		auditLog:    auditLog,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		logger:      logger.WithFields(map[string]interface{}{"component": "reconciler"}),
		now:         func() time.Time { return time.Now().UTC() },
	}
	r.scheduler = concurrent.NewScheduler("order_reconcile", cfg.Interval, r.reconcileActive, logger)
	return r
}

// Reconcile refreshes one order. The returned order carries the merged upstream
// fields; ChargeLocal is left as billed.
func (r *OrderReconciler) Reconcile(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	update, err := r.upstream.StatusUpdate(ctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("status for order %s: %w", order.OrderID, err)
	}
	if err := r.repo.UpdateStatus(order.OrderID, update); err != nil {
		return nil, fmt.Errorf("update order %s: %w", order.OrderID, err)
	}

	merged := *order
	update.Apply(&merged, r.now())

	if merged.Status != order.Status {
		details := fmt.Sprintf("Status %s -> %s (upstream %q)", order.Status, merged.Status, merged.RawStatus)
		if err := r.auditLog.LogAction(domain.EntityTypeOrder, order.OrderID, order.UserID, domain.ActionTypeReconcile, details); err != nil {
			r.logger.ErrorContext(ctx, "Failed to audit status change", map[string]interface{}{
				"order_id": order.OrderID,
				"error":    err.Error(),
			})
		}
		r.logger.InfoContext(ctx, "Order status changed", map[string]interface{}{
			"order_id": order.OrderID,
			"from":     order.Status,
			"to":       merged.Status,
			"remains":  merged.Remains,
		})
	}
	return &merged, nil
}

// ReconcileBatch reconciles orders with bounded fan-out and reports the outcome.
func (r *OrderReconciler) ReconcileBatch(ctx context.Context, orders []*domain.Order) domain.ReconcileReport {
	ctx, span := tracing.StartSpan(ctx, "orders.reconcile")
	defer span.End()

	start := time.Now()
	report := domain.ReconcileReport{Checked: len(orders)}
	var mutex sync.Mutex

	p := pool.New().WithMaxGoroutines(r.concurrency)
	for _, order := range orders {
		p.Go(func() {
			_, err := r.Reconcile(ctx, order)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, err.Error())
				r.logger.WarnContext(ctx, "Order reconcile failed", map[string]interface{}{
					"order_id": order.OrderID,
					"error":    err.Error(),
				})
				return
			}
			report.Updated++
		})
	}
	p.Wait()

	metrics.RecordReconcile(report.Checked, report.Updated, report.Failed, time.Since(start))
	return report
}

// ReconcileUser refreshes the user's orders that can still change.
func (r *OrderReconciler) ReconcileUser(ctx context.Context, userID string) (domain.ReconcileReport, error) {
	orders, err := r.repo.FindByUserID(userID)
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("failed to load orders: %w", err)
	}

	active := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			active = append(active, o)
		}
	}
	return r.ReconcileBatch(ctx, active), nil
}

func (r *OrderReconciler) reconcileActive(ctx context.Context) error {
	orders, err := r.repo.FindActive(r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to load active orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	report := r.ReconcileBatch(ctx, orders)
	r.logger.Info("Reconcile run finished", map[string]interface{}{
		"checked": report.Checked,
		"updated": report.Updated,
		"failed":  report.Failed,
	})
	return nil
}

// RunOnce runs one scheduled pass immediately.
func (r *OrderReconciler) RunOnce(ctx context.Context) error {
	return r.scheduler.RunOnce(ctx)
}

func (r *OrderReconciler) Start() {
	r.scheduler.Start()
}

func (r *OrderReconciler) Stop() {
	r.scheduler.Stop()
}

func (r *OrderReconciler) GetStats() concurrent.Stats {
	return r.scheduler.GetStats()
}
