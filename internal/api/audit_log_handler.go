package api

import (
	"net/http"
	"strconv"

	"smmpanel/internal/api/middleware"
	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

type AuditLogHandler struct {
	service domain.AuditLogService
	logger  logger.Logger
}

func NewAuditLogHandler(service domain.AuditLogService, logger logger.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AuditLogHandler) GetAllLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "page must be a positive number")
		return
	}
	pageSize, err := queryInt(r, "page_size", 50)
	if err != nil || pageSize < 1 || pageSize > 100 {
		writeError(w, http.StatusBadRequest, "invalid_request", "page_size must be between 1 and 100")
		return
	}

	logs, err := h.service.GetAllLogs(page, pageSize)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *AuditLogHandler) GetEntityLogs(w http.ResponseWriter, r *http.Request) {
	entityType := domain.EntityType(r.URL.Query().Get("entity_type"))
	entityID := r.URL.Query().Get("entity_id")

	switch entityType {
	case domain.EntityTypeOrder, domain.EntityTypeDeposit, domain.EntityTypeCatalog:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "entity_type must be one of order, deposit, catalog")
		return
	}
	if entityID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "entity_id is required")
		return
	}

	logs, err := h.service.GetEntityLogs(entityType, entityID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *AuditLogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audit-logs", middleware.RequireIdentity(h.GetAllLogs))
	mux.HandleFunc("GET /api/entity-logs", middleware.RequireIdentity(h.GetEntityLogs))
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
