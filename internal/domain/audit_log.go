package domain

import "time"

type EntityType string
type ActionType string

const (
	EntityTypeOrder   EntityType = "order"
	EntityTypeDeposit EntityType = "deposit"
	EntityTypeCatalog EntityType = "catalog"

	ActionTypeCreate    ActionType = "create"
	ActionTypeUpdate    ActionType = "update"
	ActionTypeReject    ActionType = "reject"
	ActionTypeReconcile ActionType = "reconcile"
)

type AuditLog struct {
	ID         int64      `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	UserID     string     `json:"user_id,omitempty"`
	Action     ActionType `json:"action"`
	Details    string     `json:"details,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AuditLogRepository interface {
	Create(log *AuditLog) error
	FindByEntityID(entityType EntityType, entityID string) ([]*AuditLog, error)
	FindAll(limit, offset int) ([]*AuditLog, error)
}

type AuditLogService interface {
	LogAction(entityType EntityType, entityID, userID string, action ActionType, details string) error
	GetEntityLogs(entityType EntityType, entityID string) ([]*AuditLog, error)
	GetAllLogs(page, pageSize int) ([]*AuditLog, error)
}
