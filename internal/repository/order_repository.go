package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
)

type OrderRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewOrderRepository(db *sql.DB, logger logger.Logger) domain.OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `order_id, user_id, service_id, service_name, link, quantity,
		charge_local, charge_usd, exchange_rate, status, raw_status, remains, start_count,
		upstream_charge, upstream_currency, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status string

	err := row.Scan(
		&o.OrderID,
		&o.UserID,
		&o.ServiceID,
		&o.ServiceName,
		&o.Link,
		&o.Quantity,
		&o.ChargeLocal,
		&o.ChargeUSD,
		&o.ExchangeRate,
		&status,
		&o.RawStatus,
		&o.Remains,
		&o.StartCount,
		&o.UpstreamCharge,
		&o.UpstreamCurrency,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (r *OrderRepository) Create(order *domain.Order) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("insert", "order", time.Since(start)) }()

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	_, err := r.db.Exec(
		query,
		order.OrderID,
		order.UserID,
		order.ServiceID,
		order.ServiceName,
		order.Link,
		order.Quantity,
		order.ChargeLocal,
		order.ChargeUSD,
		order.ExchangeRate,
		string(order.Status),
		order.RawStatus,
		order.Remains,
		order.StartCount,
		order.UpstreamCharge,
		order.UpstreamCurrency,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save order", map[string]interface{}{
			"order_id": order.OrderID,
			"user_id":  order.UserID,
			"error":    err.Error(),
		})
		return fmt.Errorf("failed to save order %s: %w", order.OrderID, err)
	}

	return nil
}

func (r *OrderRepository) FindByID(orderID string) (*domain.Order, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("select", "order", time.Since(start)) }()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRow(query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		r.logger.Error("Failed to load order", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) FindByUserID(userID string) ([]*domain.Order, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("select", "order", time.Since(start)) }()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		r.logger.Error("Failed to list user orders", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// FindActive returns orders upstream may still change, least recently synced first.
func (r *OrderRepository) FindActive(limit int) ([]*domain.Order, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("select", "order", time.Since(start)) }()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ($1, $2, $3)
		ORDER BY updated_at ASC
		LIMIT $4
	`

	active := domain.ActiveOrderStatuses
	rows, err := r.db.Query(query, string(active[0]), string(active[1]), string(active[2]), limit)
	if err != nil {
		r.logger.Error("Failed to list active orders", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// UpdateStatus writes only the upstream-reported fields. charge_local is never touched.
func (r *OrderRepository) UpdateStatus(orderID string, update domain.OrderStatusUpdate) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("update", "order", time.Since(start)) }()

	query := `
		UPDATE orders
		SET status = $1, raw_status = $2, remains = $3, start_count = $4,
		    upstream_charge = $5, upstream_currency = $6, updated_at = $7
		WHERE order_id = $8
	`

	result, err := r.db.Exec(
		query,
		string(update.Status),
		update.RawStatus,
		update.Remains,
		update.StartCount,
		update.UpstreamCharge,
		update.UpstreamCurrency,
		time.Now().UTC(),
		orderID,
	)
	if err != nil {
		r.logger.Error("Failed to update order status", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
