package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
)

// Run kinds
const (
	KindBacktest    = "backtest"
	KindOptimize    = "optimize"
	KindWalkForward = "walk_forward"
	KindRisk        = "risk"
)

// DefaultSQLitePath is used when the sqlite3 driver is selected without a DSN
const DefaultSQLitePath = "backtest_runs.db"

// Run is a stored engine result
type Run struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Strategy  string    `db:"strategy" json:"strategy"`
	Payload   string    `db:"payload" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Decode unmarshals the stored payload into v
func (r Run) Decode(v interface{}) error {
	return json.Unmarshal([]byte(r.Payload), v)
}

// RunFilter narrows ListRuns; zero fields match everything
type RunFilter struct {
	Kind   string
	Symbol string
	Limit  int
}

// Store persists completed runs in SQLite or PostgreSQL
type Store struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
	now     func() time.Time
}

// Open connects to the database and applies the schema
func Open(driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case "sqlite3":
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		schema = sqliteSchema
	case "postgres":
		if dsn == "" {
			return nil, errors.NewConfigError("storage", "open", "DB_DSN is required for postgres")
		}
		schema = postgresSchema
	default:
		return nil, errors.NewConfigError("storage", "open", "unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.NewStorageError("storage", "open", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorageError("storage", "ping", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewStorageError("storage", "migrate", err)
	}

	log.Debug().Str("driver", driver).Msg("run store ready")
	return &Store{db: db, driver: driver, timeout: 5 * time.Second, now: time.Now}, nil
}

// SaveRun stores payload as JSON under a new run ID
func (s *Store) SaveRun(ctx context.Context, kind, symbol, strategy string, payload interface{}) (*Run, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run payload: %w", err)
	}

	created := s.now().UTC()
	run := &Run{
		ID:        NewRunID(created),
		Kind:      kind,
		Symbol:    symbol,
		Strategy:  strategy,
		Payload:   string(body),
		CreatedAt: created,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := s.db.Rebind(`INSERT INTO runs (id, kind, symbol, strategy, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Kind, run.Symbol, run.Strategy, run.Payload, run.CreatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, errors.NewStorageError("storage", "save_run", fmt.Errorf("duplicate run id %s: %w", run.ID, err))
		}
		return nil, errors.NewStorageError("storage", "save_run", err)
	}
	return run, nil
}

// GetRun loads a run by ID; ok is false when none exists
func (s *Store) GetRun(ctx context.Context, id string) (*Run, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT id, kind, symbol, strategy, payload, created_at FROM runs WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError("storage", "get_run", err)
	}
	return &run, true, nil
}

// ListRuns returns matching runs, newest first
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT id, kind, symbol, strategy, payload, created_at FROM runs WHERE 1=1`
	var args []interface{}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, s.db.Rebind(query), args...); err != nil {
		return nil, errors.NewStorageError("storage", "list_runs", err)
	}
	return runs, nil
}

// DeleteRun removes a run; deleting a missing run is not an error
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM runs WHERE id = ?`), id); err != nil {
		return errors.NewStorageError("storage", "delete_run", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
