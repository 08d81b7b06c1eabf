package api

import (
	"context"
	"net/http"
	"time"

	"smmpanel/internal/concurrent"
	"smmpanel/internal/domain"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/circuitbreaker"
	"smmpanel/pkg/fallback"
	"smmpanel/pkg/logger"
)

type DatabaseProbe interface {
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
}

type BreakerProbe interface {
	BreakerState() circuitbreaker.State
}

type SchedulerProbe interface {
	GetStats() concurrent.Stats
}

// HealthChecks lists what the health endpoints look at. Nil probes are skipped.
type HealthChecks struct {
	Database   DatabaseProbe
	Cache      cache.Cache
	CachePool  func() map[string]interface{}
	Catalog    domain.CatalogService
	Rates      RateReporter
	Upstream   BreakerProbe
	Schedulers map[string]SchedulerProbe
}

type HealthHandler struct {
	checks  HealthChecks
	version string
	logger  logger.Logger
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
	Version   string                 `json:"version"`
}

func NewHealthHandler(checks HealthChecks, version string, logger logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
		logger:  logger,
	}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /health/live", h.LivenessCheck)
	mux.HandleFunc("GET /health/ready", h.ReadinessCheck)
}

// HealthCheck reports every dependency. Database or cache failures make the
// service unhealthy; a default exchange rate, an empty catalog or an open upstream
// breaker only degrade it.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	services := make(map[string]interface{})
	status := "healthy"

	if h.checks.Database != nil {
		db := h.checks.Database.GetStats()
		if err := h.checks.Database.Ping(ctx); err != nil {
			db = map[string]interface{}{"error": err.Error()}
			status = "unhealthy"
			db["status"] = "unhealthy"
		} else {
			db["status"] = "healthy"
		}
		services["database"] = db
	}

	if h.checks.Cache != nil {
		if err := h.checks.Cache.Ping(ctx); err != nil {
			services["cache"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			status = "unhealthy"
		} else {
			c := map[string]interface{}{"status": "healthy"}
			if h.checks.CachePool != nil {
				c["pool"] = h.checks.CachePool()
			}
			services["cache"] = c
		}
	}

	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	if h.checks.Catalog != nil {
		refreshedAt := h.checks.Catalog.RefreshedAt()
		catalog := map[string]interface{}{
			"services":     len(h.checks.Catalog.ListServices()),
			"refreshed_at": refreshedAt,
			"status":       "healthy",
		}
		if refreshedAt.IsZero() {
			catalog["status"] = "empty"
			degrade()
		}
		services["catalog"] = catalog
	}

	if h.checks.Rates != nil {
		rateStatus := h.checks.Rates.Status()
		if rateStatus.Source != fallback.SourceLastKnownGood.String() {
			degrade()
		}
		services["exchange_rate"] = rateStatus
	}

	if h.checks.Upstream != nil {
		state := h.checks.Upstream.BreakerState()
		if state == circuitbreaker.StateOpen {
			degrade()
		}
		services["upstream"] = map[string]interface{}{"circuit_breaker": state.String()}
	}

	if len(h.checks.Schedulers) > 0 {
		jobs := make(map[string]concurrent.Stats, len(h.checks.Schedulers))
		for name, s := range h.checks.Schedulers {
			jobs[name] = s.GetStats()
		}
		services["schedulers"] = jobs
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
		h.logger.Warn("Health check failed", map[string]interface{}{"services": services})
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
	})
}

func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// ReadinessCheck succeeds once storage is reachable and a catalog is loaded.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	issues := make([]string, 0)

	if h.checks.Database != nil {
		if err := h.checks.Database.Ping(ctx); err != nil {
			issues = append(issues, "database: "+err.Error())
		}
	}
	if h.checks.Cache != nil {
		if err := h.checks.Cache.Ping(ctx); err != nil {
			issues = append(issues, "cache: "+err.Error())
		}
	}
	if h.checks.Catalog != nil && h.checks.Catalog.RefreshedAt().IsZero() {
		issues = append(issues, "catalog: not loaded")
	}

	response := map[string]interface{}{
		"timestamp": time.Now(),
	}
	if len(issues) == 0 {
		response["status"] = "ready"
		writeJSON(w, http.StatusOK, response)
		return
	}

	response["status"] = "not_ready"
	response["issues"] = issues
	writeJSON(w, http.StatusServiceUnavailable, response)
}
