package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"smmpanel/internal/domain"
	"smmpanel/internal/pricing"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

type submissionState string

const (
	stateValidating   submissionState = "validating"
	statePricing      submissionState = "pricing"
	stateBalanceCheck submissionState = "balance_check"
	stateSubmitting   submissionState = "submitting"
	stateSucceeded    submissionState = "succeeded"
	stateRejected     submissionState = "rejected"
)

// OrderService places orders: validate, price, check the live balance, submit
// upstream, record. A rejected attempt never reaches the upstream panel.
type OrderService struct {
	catalog      domain.CatalogService
	rates        domain.ExchangeRateService
	calculator   *pricing.Calculator
	balances     domain.BalanceService
	balanceCache domain.BalanceService
	upstream     OrderPlacer
	repo         domain.OrderRepository
	auditLog     domain.AuditLogService
	logger       logger.Logger
	now          func() time.Time
}

// NewOrderService wires the flow. balances must read the ledger directly;
// balanceCache is only used to drop the cached display balance after an order.
func NewOrderService(
	catalog domain.CatalogService,
	rates domain.ExchangeRateService,
	calculator *pricing.Calculator,
	balances domain.BalanceService,
	balanceCache domain.BalanceService,
	upstream OrderPlacer,
	repo domain.OrderRepository,
	auditLog domain.AuditLogService,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		catalog:      catalog,
		rates:        rates,
		calculator:   calculator,
		balances:     balances,
		balanceCache: balanceCache,
		upstream:     upstream,
		repo:         repo,
		auditLog:     auditLog,
		logger:       logger.WithFields(map[string]interface{}{"component": "order_submission"}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) Quote(ctx context.Context, serviceID string, quantity int64) (*domain.Quote, error) {
	svc, err := s.lookup(serviceID, quantity)
	if err != nil {
		return nil, err
	}

	quote, err := s.calculator.Price(svc, quantity, s.rates.Rate(ctx))
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *OrderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := tracing.StartSpan(ctx, "order.place",
		attribute.String("service_id", req.ServiceID),
		attribute.Int64("quantity", req.Quantity),
	)
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"attempt_id": uuid.NewString(),
		"user_id":    req.UserID,
		"service_id": req.ServiceID,
		"quantity":   req.Quantity,
	})
	reject := func(err error) (*domain.Order, error) {
		tracing.RecordError(ctx, err)
		metrics.RecordOrder(rejectionOutcome(err))
		log.Warn("Order submission rejected", map[string]interface{}{
			"state": stateRejected,
			"error": err.Error(),
		})
		return nil, err
	}

	s.transition(log, stateValidating)
	svc, err := s.validate(req)
	if err != nil {
		return reject(err)
	}

	s.transition(log, statePricing)
	rate := s.rates.Rate(ctx)
	quote, err := s.calculator.Price(svc, req.Quantity, rate)
	if err != nil {
		return reject(err)
	}

	s.transition(log, stateBalanceCheck)
	balance, err := s.balances.GetBalance(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrBalanceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrBalanceUnavailable, err)
		}
		return reject(err)
	}
	if !balance.Covers(quote.AmountLocal) {
		return reject(fmt.Errorf("%w: order costs %s %s, available %s",
			domain.ErrInsufficientBalance, quote.AmountLocal.StringFixed(2), quote.Currency, balance.TotalAvailable.StringFixed(2)))
	}

	// The upstream call and the local record must both happen once the panel may
	// have accepted the order, even if the caller goes away.
	s.transition(log, stateSubmitting)
	submitCtx := context.WithoutCancel(ctx)
	orderID, err := s.upstream.AddOrder(submitCtx, svc.ID, req.Link, req.Quantity)
	if err != nil {
		return reject(fmt.Errorf("%w: %w", domain.ErrUpstreamOrder, err))
	}

	now := s.now()
	order := &domain.Order{
		OrderID:      orderID,
		UserID:       req.UserID,
		ServiceID:    svc.ID,
		ServiceName:  svc.Name,
		Link:         req.Link,
		Quantity:     req.Quantity,
		ChargeLocal:  quote.AmountLocal,
		ChargeUSD:    quote.AmountUSD,
		ExchangeRate: quote.Rate,
		Status:       domain.OrderStatusPending,
		Remains:      req.Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(order); err != nil {
		metrics.RecordOrder("not_persisted")
		log.Error("Order accepted upstream but could not be recorded", map[string]interface{}{
			"order_id":     orderID,
			"charge_local": quote.AmountLocal.String(),
			"error":        err.Error(),
		})
		return nil, fmt.Errorf("%w: upstream order %s: %w", domain.ErrOrderNotPersisted, orderID, err)
	}

	details := fmt.Sprintf("Order for %d x %s charged %s %s", req.Quantity, svc.Name, quote.AmountLocal.StringFixed(2), quote.Currency)
	if err := s.auditLog.LogAction(domain.EntityTypeOrder, orderID, req.UserID, domain.ActionTypeCreate, details); err != nil {
		log.Error("Failed to audit order", map[string]interface{}{"order_id": orderID, "error": err.Error()})
	}
	if s.balanceCache != nil {
		_ = s.balanceCache.InvalidateBalance(submitCtx, req.UserID)
	}

	metrics.RecordOrder("succeeded")
	metrics.ObserveOrderCharge(quote.AmountLocal.InexactFloat64())
	log.Info("Order placed", map[string]interface{}{
		"state":        stateSucceeded,
		"order_id":     orderID,
		"charge_local": quote.AmountLocal.String(),
		"charge_usd":   quote.AmountUSD.String(),
		"rate":         quote.Rate.String(),
	})
	return order, nil
}

func (s *OrderService) transition(log logger.Logger, state submissionState) {
	log.Debug("Order submission state", map[string]interface{}{"state": state})
}

func (s *OrderService) validate(req domain.PlaceOrderRequest) (domain.Service, error) {
	svc, ok := s.catalog.Service(req.ServiceID)
	if !ok {
		return domain.Service{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, req.ServiceID)
	}
	if strings.TrimSpace(req.Link) == "" {
		return domain.Service{}, fmt.Errorf("%w: link is required", domain.ErrInvalidLink)
	}
	return svc, checkQuantity(svc, req.Quantity)
}

// lookup resolves the service and checks the quantity against its bounds.
func (s *OrderService) lookup(serviceID string, quantity int64) (domain.Service, error) {
	svc, ok := s.catalog.Service(serviceID)
	if !ok {
		return domain.Service{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, serviceID)
	}
	return svc, checkQuantity(svc, quantity)
}

func checkQuantity(svc domain.Service, quantity int64) error {
	if !svc.AcceptsQuantity(quantity) {
		return fmt.Errorf("%w: %d is outside [%d, %d]",
			domain.ErrInvalidQuantity, quantity, svc.MinQuantity, svc.MaxQuantity)
	}
	return nil
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	orders, err := s.repo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	if status == "" {
		return orders, nil
	}

	var filtered []*domain.Order
	for _, o := range orders {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func rejectionOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidLink), errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrServiceNotFound):
		return "invalid"
	case errors.Is(err, domain.ErrInvalidRate):
		return "invalid_rate"
	case errors.Is(err, domain.ErrBalanceUnavailable):
		return "balance_unavailable"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrUpstreamOrder):
		return "upstream_failed"
	default:
		return "failed"
	}
}
