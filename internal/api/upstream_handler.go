package api

import (
	"context"
	"net/http"

	"smmpanel/internal/api/middleware"
	"smmpanel/internal/gateway/reseller"
	"smmpanel/pkg/logger"
)

type UpstreamAccount interface {
	Balance(ctx context.Context) (*reseller.AccountBalance, error)
}

// UpstreamHandler exposes the panel's own funds at the upstream provider so
// operators can top up before orders start failing.
type UpstreamHandler struct {
	upstream UpstreamAccount
	logger   logger.Logger
}

func NewUpstreamHandler(upstream UpstreamAccount, logger logger.Logger) *UpstreamHandler {
	return &UpstreamHandler{
		upstream: upstream,
		logger:   logger,
	}
}

func (h *UpstreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/upstream-balance", middleware.RequireIdentity(h.handleBalance))
}

func (h *UpstreamHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.upstream.Balance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Upstream balance lookup failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
