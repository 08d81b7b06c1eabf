package api

import (
	"net/http"
	"strings"
	"time"

	"smmpanel/internal/api/middleware"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/logger"
)

type CacheHandler struct {
	cache         cache.Cache
	warmUpManager *cache.WarmUpManager
	logger        logger.Logger
}

type CacheInvalidateRequest struct {
	Prefix string   `json:"prefix,omitempty" validate:"omitempty,oneof=balance deposit catalog fx"`
	Keys   []string `json:"keys,omitempty" validate:"omitempty,max=100,dive,required"`
	UserID string   `json:"user_id,omitempty"`
}

func NewCacheHandler(cache cache.Cache, warmUpManager *cache.WarmUpManager, logger logger.Logger) *CacheHandler {
	return &CacheHandler{
		cache:         cache,
		warmUpManager: warmUpManager,
		logger:        logger,
	}
}

func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/cache/warmup", middleware.RequireIdentity(h.handleWarmUp))
	mux.HandleFunc("/api/cache/invalidate", middleware.RequireIdentity(h.handleInvalidate))
	mux.HandleFunc("/api/cache/health", h.handleHealth)
}

// handleWarmUp reloads the catalog and exchange rate snapshots into memory.
func (h *CacheHandler) handleWarmUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := h.warmUpManager.WarmUp(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Cache warm-up failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "warmup_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"timestamp": time.Now(),
	})
}

func (h *CacheHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req CacheInvalidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	var err error
	var target string

	switch {
	case req.Prefix != "":
		target = req.Prefix
		err = h.cache.InvalidatePrefix(ctx, req.Prefix+":")
	case len(req.Keys) > 0:
		target = strings.Join(req.Keys, ",")
		err = h.cache.DeleteMultiple(ctx, req.Keys)
	case req.UserID != "":
		target = "user:" + req.UserID
		err = cache.InvalidateBalanceCache(ctx, h.cache, req.UserID)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "one of prefix, keys or user_id is required")
		return
	}

	if err != nil {
		h.logger.ErrorContext(ctx, "Cache invalidation failed", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "invalidation_failed", err.Error())
		return
	}

	h.logger.InfoContext(ctx, "Cache invalidated", map[string]interface{}{"target": target})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"target":    target,
		"timestamp": time.Now(),
	})
}

func (h *CacheHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	response := map[string]interface{}{
		"timestamp": time.Now(),
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		response["status"] = "unhealthy"
		response["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response["status"] = "healthy"
	writeJSON(w, http.StatusOK, response)
}
