package knowledge

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // pure Go sqlite driver, no CGO
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultDBPath    = "~/.local/share/steward/knowledge.db"
	healthTimeout    = 5 * time.Second
	migrationTimeout = 30 * time.Second
)

// migrations run in order, each inside its own transaction. Statements are
// written to be idempotent, so re-running on startup is safe.
var migrations = []struct {
	name   string
	schema string
}{
	{"initial", schemaSQL},
}

// DB wraps the sqlite connection backing the knowledge store.
type DB struct {
	sql    *sql.DB
	path   string
	logger *zap.Logger
}

// OpenDB opens (creating if needed) the sqlite database at path, applies
// pragmas, and runs migrations. A leading ~ expands to the home directory.
func OpenDB(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = defaultDBPath
	}

	expanded, err := expandDBPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	handle, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer. SQLite serializes writes anyway; a one-connection
	// pool turns lock contention into queueing instead of SQLITE_BUSY.
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	handle.SetConnMaxLifetime(0)

	db := &DB{sql: handle, path: expanded, logger: logger}

	if err := db.initPragmas(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("initializing pragmas: %w", err)
	}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("knowledge database opened", zap.String("path", expanded))
	return db, nil
}

func (d *DB) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := d.sql.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (d *DB) migrate() error {
	for _, m := range migrations {
		if err := d.runMigration(m.name, m.schema); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (d *DB) runMigration(name, schema string) error {
	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitStatements(schema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	d.logger.Debug("migration applied", zap.String("name", name))
	return nil
}

// splitStatements splits trigger-free DDL on semicolons, dropping blank
// lines and full-line comments.
func splitStatements(schema string) []string {
	var statements []string
	for _, raw := range strings.Split(schema, ";") {
		var b strings.Builder
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if stmt := strings.TrimSpace(b.String()); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Health verifies the connection is alive.
func (d *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var one int
	if err := d.sql.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("knowledge db health: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	if _, err := d.sql.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		d.logger.Warn("wal checkpoint on close failed", zap.Error(err))
	}
	if err := d.sql.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, rolling back on error.
func (d *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func expandDBPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
