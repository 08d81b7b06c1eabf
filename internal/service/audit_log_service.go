package service

import (
	"fmt"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

type AuditLogService struct {
	repo   domain.AuditLogRepository
	logger logger.Logger
}

func NewAuditLogService(repo domain.AuditLogRepository, logger logger.Logger) domain.AuditLogService {
	return &AuditLogService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AuditLogService) LogAction(entityType domain.EntityType, entityID, userID string, action domain.ActionType, details string) error {
	auditLog := &domain.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Action:     action,
		Details:    details,
	}

	if err := s.repo.Create(auditLog); err != nil {
		s.logger.Error("Failed to write audit log", map[string]interface{}{
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
			"error":       err.Error(),
		})
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

func (s *AuditLogService) GetEntityLogs(entityType domain.EntityType, entityID string) ([]*domain.AuditLog, error) {
	logs, err := s.repo.FindByEntityID(entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit logs: %w", err)
	}
	return logs, nil
}

func (s *AuditLogService) GetAllLogs(page, pageSize int) ([]*domain.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	logs, err := s.repo.FindAll(pageSize, (page-1)*pageSize)
	if err != nil {
		s.logger.Error("Failed to load audit logs", map[string]interface{}{
			"page":      page,
			"page_size": pageSize,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to load audit logs: %w", err)
	}

	return logs, nil
}
