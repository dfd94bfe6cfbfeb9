// Package history is a SQLite-backed audit trail of compile runs, gated by
// --history-db: a single synchronous insert per run, since compiling a
// rules document is an interactive, low-frequency operation rather than a
// per-request hot path.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Store provides SQLite-based compile-history storage.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or attaches to the SQLite compile-history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "rulesc-history.db"
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS compile_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		source_path TEXT NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		warning_count INTEGER NOT NULL DEFAULT 0,
		function_count INTEGER NOT NULL DEFAULT 0,
		has_firecrypt INTEGER NOT NULL DEFAULT 0,
		duration_ms REAL
	);

	CREATE INDEX IF NOT EXISTS idx_compile_runs_timestamp ON compile_runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_compile_runs_source_path ON compile_runs(source_path);
	CREATE INDEX IF NOT EXISTS idx_compile_runs_success ON compile_runs(success);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record is one compile-run audit entry.
type Record struct {
	ID            int64
	RunID         string
	Timestamp     time.Time
	SourcePath    string
	Success       bool
	Error         string
	WarningCount  int
	FunctionCount int
	HasFirecrypt  bool
	DurationMs    float64
}

// Insert adds a single compile-run record.
func (s *Store) Insert(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compile_runs (
			run_id, timestamp, source_path, success, error,
			warning_count, function_count, has_firecrypt, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Timestamp, r.SourcePath, r.Success, nullableString(r.Error),
		r.WarningCount, r.FunctionCount, r.HasFirecrypt, r.DurationMs,
	)
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// allowedOrderByColumns whitelists ORDER BY columns for Query, preventing
// SQL injection through a caller-supplied sort column.
var allowedOrderByColumns = map[string]bool{
	"id":         true,
	"timestamp":  true,
	"source_path": true,
	"success":    true,
	"duration_ms": true,
}

// QueryOptions filters and paginates Query.
type QueryOptions struct {
	SourcePath string
	Success    *bool
	Since      *time.Time
	OrderBy    string
	OrderDesc  bool
	Limit      int
}

// Query retrieves compile-run records matching opts, ordered by timestamp
// unless OrderBy names another column; the order is ascending (oldest
// first) unless OrderDesc is set.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]*Record, error) {
	var conditions []string
	var args []interface{}

	if opts.SourcePath != "" {
		conditions = append(conditions, "source_path = ?")
		args = append(args, opts.SourcePath)
	}
	if opts.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *opts.Success)
	}
	if opts.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *opts.Since)
	}

	query := "SELECT id, run_id, timestamp, source_path, success, error, " +
		"warning_count, function_count, has_firecrypt, duration_ms FROM compile_runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "timestamp"
	if opts.OrderBy != "" {
		if !allowedOrderByColumns[opts.OrderBy] {
			return nil, fmt.Errorf("invalid order by column: %s", opts.OrderBy)
		}
		orderBy = opts.OrderBy
	}
	order := "DESC"
	if !opts.OrderDesc {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, order)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying compile history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r := &Record{}
		var errStr sql.NullString
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.SourcePath, &r.Success, &errStr,
			&r.WarningCount, &r.FunctionCount, &r.HasFirecrypt, &r.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning compile history row: %w", err)
		}
		r.Error = errStr.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	log.Info().Str("path", s.dbPath).Msg("closing history store")
	return s.db.Close()
}
