package database

import (
	"database/sql"
	"fmt"
	"time"

	"smmpanel/pkg/logger"
)

// Dialect carries the column types that differ between postgres and sqlite.
type Dialect struct {
	Name   string
	Serial string
	Money  string
}

var (
	Postgres = Dialect{Name: "postgres", Serial: "BIGSERIAL PRIMARY KEY", Money: "NUMERIC(18,4)"}
	// sqlite has no exact decimal type; TEXT keeps amounts byte-for-byte.
	SQLite = Dialect{Name: "sqlite3", Serial: "INTEGER PRIMARY KEY AUTOINCREMENT", Money: "TEXT"}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

type Migration struct {
	Name string
	Func func(tx *sql.Tx, d Dialect) error
}

type MigrationService struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

func NewMigrationService(db *sql.DB, dialect Dialect, logger logger.Logger) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func (m *MigrationService) InitMigrationTable() error {
	query := `
    CREATE TABLE IF NOT EXISTS migrations (
        name TEXT PRIMARY KEY,
        applied_at TIMESTAMP NOT NULL
    )
    `

	if _, err := m.db.Exec(query); err != nil {
		m.logger.Error("Failed to create migrations table", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (m *MigrationService) IsMigrationApplied(name string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM migrations WHERE name = $1"
	if err := m.db.QueryRow(query, name).Scan(&count); err != nil {
		m.logger.Error("Failed to check migration state", map[string]interface{}{"name": name, "error": err.Error()})
		return false, err
	}
	return count > 0, nil
}

// ApplyMigration runs one migration and records it in the same transaction.
func (m *MigrationService) ApplyMigration(migration Migration) (err error) {
	applied, err := m.IsMigrationApplied(migration.Name)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": migration.Name})
		return nil
	}

	m.logger.Info("Applying migration", map[string]interface{}{"name": migration.Name})

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			m.logger.Error("Migration rolled back", map[string]interface{}{"name": migration.Name, "error": err.Error()})
		}
	}()

	if err = migration.Func(tx, m.dialect); err != nil {
		return err
	}

	if _, err = tx.Exec("INSERT INTO migrations (name, applied_at) VALUES ($1, $2)", migration.Name, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": migration.Name})
	return nil
}

func (m *MigrationService) RunMigrations() error {
	if err := m.InitMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := []Migration{
		{"create_orders_table", CreateOrdersTable},
		{"create_audit_logs_table", CreateAuditLogsTable},
	}

	for _, migration := range migrations {
		if err := m.ApplyMigration(migration); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}
	return nil
}

func CreateOrdersTable(tx *sql.Tx, d Dialect) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS orders (
        order_id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        service_id TEXT NOT NULL,
        service_name TEXT NOT NULL,
        link TEXT NOT NULL,
        quantity BIGINT NOT NULL,
        charge_local %[1]s NOT NULL,
        charge_usd %[1]s NOT NULL,
        exchange_rate %[1]s NOT NULL,
        status TEXT NOT NULL,
        raw_status TEXT NOT NULL DEFAULT '',
        remains BIGINT NOT NULL DEFAULT 0,
        start_count BIGINT NOT NULL DEFAULT 0,
        upstream_charge %[1]s,
        upstream_currency TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at);
    CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);
    `, d.Money)

	_, err := tx.Exec(query)
	return err
}

func CreateAuditLogsTable(tx *sql.Tx, d Dialect) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS audit_logs (
        id %s,
        entity_type TEXT NOT NULL,
        entity_id TEXT NOT NULL,
        user_id TEXT NOT NULL DEFAULT '',
        action TEXT NOT NULL,
        details TEXT,
        created_at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs (entity_type, entity_id);
    `, d.Serial)

	_, err := tx.Exec(query)
	return err
}
