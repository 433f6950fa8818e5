package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/subgrab/internal/model"
)

// FileName is the name of the history database inside the database directory.
const FileName = "subgrab.db"

var (
	// ErrDatabaseNotFound is returned by Open when the database does not
	// exist and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned by GetRun when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")
)

// startedAtLayout is a fixed-width UTC layout so that started_at sorts
// lexically in chronological order.
const startedAtLayout = "2006-01-02T15:04:05.000000000Z"

// HistoryDB stores finished runs in SQLite.
// Runs are written after the pipeline has finished and are read only by
// the history command.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned
// and nothing is created on disk.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (run with --history first)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		home_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		succeeded INTEGER NOT NULL DEFAULT 0,
		saved_files INTEGER NOT NULL DEFAULT 0,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run. Saving a run with an existing ID replaces it.
// The ciphertext and plaintext of the run are not stored.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run has no ID")
	}

	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, home_url, started_at, succeeded, saved_files, run_json)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		home_url = excluded.home_url,
		started_at = excluded.started_at,
		succeeded = excluded.succeeded,
		saved_files = excluded.saved_files,
		run_json = excluded.run_json
	`

	succeeded := 0
	if run.Succeeded() {
		succeeded = 1
	}

	_, err = hdb.db.ExecContext(ctx, query,
		run.ID,
		run.HomeURL,
		run.StartedAt.UTC().Format(startedAtLayout),
		succeeded,
		len(run.SavedFiles()),
		string(runJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// ListRuns returns up to limit runs, newest first.
// A limit of zero or less returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	query := `
	SELECT run_json FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := hdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var run model.Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			continue // Skip malformed rows
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `SELECT run_json FROM runs WHERE run_id = ?`

	var runJSON string
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}

	return &run, nil
}

// CountRuns returns the number of stored runs.
func (hdb *HistoryDB) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := hdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (hdb *HistoryDB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
	DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	)
	`

	res, err := hdb.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
