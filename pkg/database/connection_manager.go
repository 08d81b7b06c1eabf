package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"smmpanel/internal/config"
	internaldb "smmpanel/internal/database"
	"smmpanel/pkg/logger"
)

// ConnectionManager owns the single *sql.DB used by the repositories.
type ConnectionManager struct {
	db      *sql.DB
	dialect internaldb.Dialect
	logger  logger.Logger
}

func NewConnectionManager(cfg config.DatabaseConfig, logger logger.Logger) (*ConnectionManager, error) {
	dialect, err := internaldb.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Name, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == internaldb.SQLite {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established", map[string]interface{}{
		"driver": dialect.Name,
		"host":   cfg.Host,
	})

	return &ConnectionManager{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}, nil
}

func dsn(cfg config.DatabaseConfig) string {
	if cfg.Driver == internaldb.SQLite.Name {
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.SQLitePath)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

func (cm *ConnectionManager) DB() *sql.DB {
	return cm.db
}

func (cm *ConnectionManager) Dialect() internaldb.Dialect {
	return cm.dialect
}

func (cm *ConnectionManager) Ping(ctx context.Context) error {
	return cm.db.PingContext(ctx)
}

func (cm *ConnectionManager) Close() error {
	if err := cm.db.Close(); err != nil {
		cm.logger.Error("Failed to close database", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (cm *ConnectionManager) GetStats() map[string]interface{} {
	s := cm.db.Stats()
	return map[string]interface{}{
		"driver":           cm.dialect.Name,
		"open_connections": s.OpenConnections,
		"in_use":           s.InUse,
		"idle":             s.Idle,
		"wait_count":       s.WaitCount,
		"wait_duration":    s.WaitDuration.String(),
	}
}
