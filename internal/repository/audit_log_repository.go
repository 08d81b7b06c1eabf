package repository

import (
	"database/sql"
	"fmt"
	"time"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
)

type AuditLogRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAuditLogRepository(db *sql.DB, logger logger.Logger) domain.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AuditLogRepository) Create(log *domain.AuditLog) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("insert", "audit_log", time.Since(start)) }()

	query := `
		INSERT INTO audit_logs (entity_type, entity_id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	log.CreatedAt = time.Now().UTC()

	err := r.db.QueryRow(
		query,
		string(log.EntityType),
		log.EntityID,
		log.UserID,
		string(log.Action),
		log.Details,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		r.logger.Error("Failed to create audit log", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

func (r *AuditLogRepository) FindByEntityID(entityType domain.EntityType, entityID string) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, user_id, action, details, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(query, string(entityType), entityID)
	if err != nil {
		r.logger.Error("Failed to query audit logs", map[string]interface{}{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *AuditLogRepository) FindAll(limit, offset int) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, user_id, action, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to query audit logs", map[string]interface{}{
			"limit":  limit,
			"offset": offset,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *AuditLogRepository) collect(rows *sql.Rows) ([]*domain.AuditLog, error) {
	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var log domain.AuditLog
		var entityTypeStr, actionStr string
		var details sql.NullString

		err := rows.Scan(
			&log.ID,
			&entityTypeStr,
			&log.EntityID,
			&log.UserID,
			&actionStr,
			&details,
			&log.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to read audit log row", map[string]interface{}{"error": err.Error()})
			return nil, fmt.Errorf("failed to read audit log: %w", err)
		}

		log.EntityType = domain.EntityType(entityTypeStr)
		log.Action = domain.ActionType(actionStr)
		log.Details = details.String

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit logs: %w", err)
	}
	return logs, nil
}
