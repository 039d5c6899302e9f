package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a work item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a status update loses against a concurrent writer.
	ErrConflict = errors.New("status conflict")
)

const dateLayout = "2006-01-02"

// Store persists work items, the usage ledger and guard settings in Postgres or SQLite.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

// Open connects to the database for driver ("postgres" or "sqlite") and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if name == "sqlite" {
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY between batches.
		db.SetMaxOpenConns(1)
	}

	store := New(db, driver)
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing sql.DB without running migrations.
func New(db *sql.DB, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if name, _ := driverName(driver); name == "postgres" {
		format = sq.Dollar
	}
	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(format),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Health returns an error if the database is not reachable.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS work_items (
			id TEXT PRIMARY KEY,
			source_text TEXT NOT NULL,
			region TEXT NOT NULL,
			status TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			subtitle TEXT NOT NULL DEFAULT '',
			grade TEXT NOT NULL DEFAULT '',
			length_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_pending ON work_items(status, region, created_at)`,
		`CREATE TABLE IF NOT EXISTS usage_records (
			id TEXT PRIMARY KEY,
			usage_date TEXT NOT NULL,
			region TEXT NOT NULL,
			provider TEXT NOT NULL,
			call_count INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_records_date ON usage_records(usage_date, region)`,
		`CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func driverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlite", "sqlite3", "":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
