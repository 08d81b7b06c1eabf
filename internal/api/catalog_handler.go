package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smmpanel/internal/api/middleware"
	"smmpanel/internal/domain"
	"smmpanel/pkg/fallback"
	"smmpanel/pkg/logger"
)

// RateReporter is the exchange rate provider as seen by the HTTP layer.
type RateReporter interface {
	Rate(ctx context.Context) domain.ExchangeRate
	Status() fallback.Status
}

type CatalogHandler struct {
	catalog domain.CatalogService
	orders  domain.OrderService
	rates   RateReporter
	logger  logger.Logger
}

type CatalogResponse struct {
	Services    []domain.Service `json:"services"`
	Count       int              `json:"count"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

type ExchangeRateResponse struct {
	domain.ExchangeRate
	Status fallback.Status `json:"status"`
}

type QuoteResponse struct {
	domain.Quote
	ServiceName string `json:"service_name"`
}

func NewCatalogHandler(catalog domain.CatalogService, orders domain.OrderService, rates RateReporter, logger logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		orders:  orders,
		rates:   rates,
		logger:  logger,
	}
}

func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/services", h.handleList)
	mux.HandleFunc("/api/services/refresh", middleware.RequireIdentity(h.handleRefresh))
	mux.HandleFunc("/api/quote", h.handleQuote)
	mux.HandleFunc("/api/exchange-rate", h.handleExchangeRate)
}

func (h *CatalogHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	services := h.catalog.Filter(domain.ServiceFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
	})
	if services == nil {
		services = []domain.Service{}
	}

	writeJSON(w, http.StatusOK, CatalogResponse{
		Services:    services,
		Count:       len(services),
		RefreshedAt: h.catalog.RefreshedAt(),
	})
}

func (h *CatalogHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := h.catalog.Refresh(r.Context()); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	services := h.catalog.ListServices()
	writeJSON(w, http.StatusOK, CatalogResponse{
		Services:    services,
		Count:       len(services),
		RefreshedAt: h.catalog.RefreshedAt(),
	})
}

func (h *CatalogHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "service_id is required")
		return
	}
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be a whole number")
		return
	}

	quote, err := h.orders.Quote(r.Context(), serviceID, quantity)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	svc, _ := h.catalog.Service(serviceID)
	writeJSON(w, http.StatusOK, QuoteResponse{Quote: *quote, ServiceName: svc.Name})
}

func (h *CatalogHandler) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, ExchangeRateResponse{
		ExchangeRate: h.rates.Rate(r.Context()),
		Status:       h.rates.Status(),
	})
}
