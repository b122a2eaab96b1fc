package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	_ "modernc.org/sqlite"
)

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// OpenSQLite opens (or creates) a sqlite store at the given path. A single
// writer connection with a busy timeout keeps concurrent callers serialized
// without SQLITE_BUSY failures.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite store: %w", err)
	}
	return db, nil
}

// SchemaManager owns the state-store DDL for both dialects.
type SchemaManager struct {
	db      *sql.DB
	dialect Dialect
}

// NewSchemaManager creates a new schema manager
func NewSchemaManager(db *sql.DB, dialect Dialect) *SchemaManager {
	return &SchemaManager{db: db, dialect: dialect}
}

// CreateTables creates the required tables and indexes if they don't exist.
func (sm *SchemaManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createDevicesTable := `
		CREATE TABLE IF NOT EXISTS devices (
			device_id        TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			hardware_address TEXT,
			owner_id         TEXT NOT NULL,
			device_type      TEXT NOT NULL,
			sensor_type      TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			latitude         DOUBLE PRECISION,
			longitude        DOUBLE PRECISION,
			is_online        BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen        {ts},
			battery_level    INTEGER,
			firmware_version TEXT NOT NULL DEFAULT '',
			created_at       {ts} NOT NULL,
			updated_at       {ts} NOT NULL
		);
	`

	createDataPointsTable := `
		CREATE TABLE IF NOT EXISTS data_points (
			id            {serial},
			device_id     TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			value         DOUBLE PRECISION NOT NULL,
			unit          TEXT NOT NULL,
			ts            {ts} NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL DEFAULT 1.0
		);
	`

	createAlertsTable := `
		CREATE TABLE IF NOT EXISTS alerts (
			id              {serial},
			device_id       TEXT REFERENCES devices(device_id) ON DELETE CASCADE,
			location        TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL,
			message         TEXT NOT NULL,
			alert_type      TEXT NOT NULL,
			severity        TEXT NOT NULL DEFAULT 'medium',
			threshold_value DOUBLE PRECISION,
			actual_value    DOUBLE PRECISION,
			unit            TEXT NOT NULL DEFAULT '',
			is_resolved     BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at     {ts},
			resolved_by     TEXT NOT NULL DEFAULT '',
			created_at      {ts} NOT NULL
		);
	`

	createCommandsTable := `
		CREATE TABLE IF NOT EXISTS commands (
			id          {serial},
			device_id   TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			command     TEXT NOT NULL,
			parameters  TEXT NOT NULL DEFAULT '{}',
			status      TEXT NOT NULL DEFAULT 'pending',
			sent_at     {ts},
			executed_at {ts},
			response    TEXT NOT NULL DEFAULT '{}',
			issued_by   TEXT NOT NULL,
			created_at  {ts} NOT NULL
		);
	`

	// The partial unique indexes are what the concurrency model leans on:
	// duplicate device rows and duplicate open alerts lose the race at
	// write time instead of being checked in application code.
	createIndexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_hw_key
			ON devices (hardware_address, sensor_type) WHERE hardware_address IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_data_points_device_ts ON data_points (device_id, ts DESC, id DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_device
			ON alerts (device_id, title) WHERE is_resolved = FALSE AND device_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_location
			ON alerts (location, title) WHERE is_resolved = FALSE AND device_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_commands_device_created ON commands (device_id, created_at DESC, id DESC)`,
	}

	queries := []string{
		createDevicesTable,
		createDataPointsTable,
		createAlertsTable,
		createCommandsTable,
	}
	queries = append(queries, createIndexes...)

	replacer := strings.NewReplacer(
		"{serial}", sm.dialect.serialPK(),
		"{ts}", sm.dialect.timestampType(),
	)

	for _, query := range queries {
		if _, err := sm.db.ExecContext(ctx, replacer.Replace(query)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (sm *SchemaManager) Close() error {
	if sm.db != nil {
		return sm.db.Close()
	}
	return nil
}
