// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a pooled sqlx.DB connection to the SQLite catalog. The catalog
// makes registrations durable across restarts and lets parallel pipeline
// processes share one registry.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingTimeout := cfg.BusyTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Connection pragmas (journal mode, foreign keys, busy timeout) are set via
// the DSN; SQLite refuses to switch journal modes inside a transaction, so
// only DDL belongs here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dataframes (
                id TEXT PRIMARY KEY,
                pipeline_id TEXT NOT NULL,
                name TEXT,
                description TEXT,
                columns TEXT,
                row_count INTEGER NOT NULL DEFAULT 0,
                storage_path TEXT,
                source TEXT NOT NULL,
                provider TEXT NOT NULL,
                access_method TEXT,
                coverage_min DATETIME,
                coverage_max DATETIME,
                last_updated DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS pipelines (
                id TEXT PRIMARY KEY,
                title TEXT,
                developer TEXT,
                contributors TEXT,
                repo_url TEXT,
                os_tags TEXT,
                last_updated DATETIME
        );`,
	`CREATE TABLE IF NOT EXISTS charts (
                id TEXT PRIMARY KEY,
                title TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS pipeline_dataframes (
                pipeline_id TEXT NOT NULL,
                dataframe_id TEXT NOT NULL,
                PRIMARY KEY (pipeline_id, dataframe_id),
                FOREIGN KEY(dataframe_id) REFERENCES dataframes(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS chart_dataframes (
                chart_id TEXT NOT NULL,
                dataframe_id TEXT NOT NULL,
                PRIMARY KEY (chart_id, dataframe_id),
                FOREIGN KEY(dataframe_id) REFERENCES dataframes(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS audit (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                run_id TEXT,
                dataframe_id TEXT,
                action TEXT NOT NULL,
                detail TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_dataframes_pipeline ON dataframes(pipeline_id);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_dataframe ON audit(dataframe_id);`,
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
