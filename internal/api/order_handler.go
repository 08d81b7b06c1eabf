package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"smmpanel/internal/api/middleware"
	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

type OrderHandler struct {
	orders     domain.OrderService
	reconciler domain.OrderReconciler
	logger     logger.Logger
}

type PlaceOrderRequest struct {
	ServiceID string `json:"service_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
	Link      string `json:"link" validate:"required,max=2048"`
}

type OrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

func NewOrderHandler(orders domain.OrderService, reconciler domain.OrderReconciler, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		orders:     orders,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/orders", middleware.RequireIdentity(h.handleOrders))
	mux.HandleFunc("/api/orders/refresh", middleware.RequireIdentity(h.handleRefresh))
	mux.HandleFunc("/api/orders/{id}", middleware.RequireIdentity(h.handleGetOrder))
}

func (h *OrderHandler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.placeOrder(w, r)
	case http.MethodGet:
		h.listOrders(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := domain.CurrentUser(r.Context())

	var req PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			writeError(w, http.StatusBadRequest, validationCode(validationErrs), err.Error())
			return
		}
		var typeErr *FieldTypeError
		if errors.As(err, &typeErr) {
			writeError(w, http.StatusBadRequest, fieldCode(typeErr.Field), typeErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), domain.PlaceOrderRequest{
		UserID:    identity.UserID,
		ServiceID: req.ServiceID,
		Quantity:  req.Quantity,
		Link:      req.Link,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := domain.CurrentUser(r.Context())

	var status domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = domain.NormalizeStatus(raw)
	}

	orders, err := h.orders.GetUserOrders(r.Context(), identity.UserID, status)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	writeJSON(w, http.StatusOK, OrdersResponse{Orders: orders, Count: len(orders)})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity, _ := domain.CurrentUser(r.Context())

	order, err := h.orders.GetOrder(r.Context(), identity.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	identity, _ := domain.CurrentUser(r.Context())

	report, err := h.reconciler.ReconcileUser(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// validationCode picks the domain code for the first failing field.
func validationCode(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid_request"
	}
	return fieldCode(errs[0].Field())
}

func fieldCode(field string) string {
	switch strings.ToLower(field) {
	case "quantity":
		return "invalid_quantity"
	case "link":
		return "invalid_link"
	default:
		return "invalid_request"
	}
}
