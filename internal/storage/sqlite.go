package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/osbits/fcheck/internal/checks"
	"github.com/osbits/fcheck/internal/runner"
)

// Options configures storage behaviour.
type Options struct {
	// RunRetention is the number of runs kept. Older runs are pruned on insert.
	RunRetention          int
	NotificationRetention int
}

// Store wraps sqlite persistence for run history and notifications.
type Store struct {
	db                *sql.DB
	runLimit          int
	notificationLimit int
}

// RunSummary is a persisted run.
type RunSummary struct {
	RunID       string
	Result      checks.Outcome
	Tests       int
	Failed      int
	StartedAt   time.Time
	CompletedAt time.Time
}

// CheckRecord is a persisted check outcome.
type CheckRecord struct {
	RunID         string
	Phase         string
	Name          string
	Result        checks.Outcome
	Actions       int
	FailedActions int
	CompletedAt   time.Time
}

// NotificationLog captures a notifier dispatch attempt.
type NotificationLog struct {
	NotifierID string
	RunID      string
	Status     string
	Summary    string
	Error      string
	OccurredAt time.Time
}

// Open initialises a sqlite store with WAL enabled and required schema.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	runLimit := opts.RunRetention
	if runLimit <= 0 {
		runLimit = 50
	}
	notificationLimit := opts.NotificationRetention
	if notificationLimit <= 0 {
		notificationLimit = 100
	}

	store := &Store{
		db:                db,
		runLimit:          runLimit,
		notificationLimit: notificationLimit,
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configureSQLite(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			result TEXT NOT NULL,
			tests INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			started_at_ms INTEGER NOT NULL,
			completed_at_ms INTEGER NOT NULL,
			report_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS check_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			check_name TEXT NOT NULL,
			result TEXT NOT NULL,
			actions INTEGER NOT NULL,
			failed_actions INTEGER NOT NULL,
			completed_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_check_results_name ON check_results (check_name, id DESC);`,
		`CREATE TABLE IF NOT EXISTS notification_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			notifier_id TEXT NOT NULL,
			run_id TEXT,
			status TEXT,
			summary TEXT,
			error TEXT,
			occurred_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// RecordRun persists a run with its checks and enforces retention.
func (s *Store) RecordRun(ctx context.Context, run runner.RunResult) (err error) {
	if s == nil || s.db == nil {
		return nil
	}
	report, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	failed := 0
	for _, t := range run.Tests {
		if t.Failed() {
			failed++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, result, tests, failed, started_at_ms, completed_at_ms, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, string(run.Result), len(run.Tests), failed, run.StartedAt.UnixMilli(), run.CompletedAt.UnixMilli(), string(report))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	insert := func(phase string, c checks.CheckResult) error {
		failedActions := 0
		for _, a := range c.Results {
			if a.Result == checks.Failure {
				failedActions++
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO check_results (run_id, phase, check_name, result, actions, failed_actions, completed_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, phase, c.Name, string(c.Result), len(c.Results), failedActions, run.CompletedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert check_result %q: %w", c.Name, err)
		}
		return nil
	}
	if run.Setup != nil {
		if err = insert("setup", *run.Setup); err != nil {
			return err
		}
	}
	for _, t := range run.Tests {
		if err = insert("test", t); err != nil {
			return err
		}
	}
	if run.Teardown != nil {
		if err = insert("teardown", *run.Teardown); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs
			ORDER BY id DESC
			LIMIT ?
		)
	`, s.runLimit)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM check_results WHERE run_id NOT IN (SELECT run_id FROM runs)`)
	if err != nil {
		return fmt.Errorf("prune check_results: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, result, tests, failed, started_at_ms, completed_at_ms
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r                  RunSummary
			result             string
			started, completed int64
		)
		if err := rows.Scan(&r.RunID, &result, &r.Tests, &r.Failed, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Result = checks.Outcome(result)
		r.StartedAt = time.UnixMilli(started).UTC()
		r.CompletedAt = time.UnixMilli(completed).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadRun returns the full stored report of a run.
func (s *Store) LoadRun(ctx context.Context, runID string) (runner.RunResult, error) {
	var res runner.RunResult
	if s == nil || s.db == nil {
		return res, errors.New("store not initialised")
	}
	var report string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&report)
	if err != nil {
		return res, fmt.Errorf("load run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(report), &res); err != nil {
		return res, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return res, nil
}

// CheckHistory returns up to limit outcomes of the named check, newest first.
func (s *Store) CheckHistory(ctx context.Context, name string, limit int) ([]CheckRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, phase, check_name, result, actions, failed_actions, completed_at_ms
		FROM check_results
		WHERE check_name = ?
		ORDER BY id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query check_results: %w", err)
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var (
			c         CheckRecord
			result    string
			completed int64
		)
		if err := rows.Scan(&c.RunID, &c.Phase, &c.Name, &result, &c.Actions, &c.FailedActions, &completed); err != nil {
			return nil, fmt.Errorf("scan check_result: %w", err)
		}
		c.Result = checks.Outcome(result)
		c.CompletedAt = time.UnixMilli(completed).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordNotification stores a notification dispatch entry and enforces retention.
func (s *Store) RecordNotification(ctx context.Context, log NotificationLog) (err error) {
	if s == nil || s.db == nil {
		return nil
	}
	if log.OccurredAt.IsZero() {
		log.OccurredAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_logs (notifier_id, run_id, status, summary, error, occurred_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.NotifierID, log.RunID, log.Status, log.Summary, log.Error, log.OccurredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert notification_log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM notification_logs
		WHERE id NOT IN (
			SELECT id FROM notification_logs
			ORDER BY id DESC
			LIMIT ?
		)
	`, s.notificationLimit)
	if err != nil {
		return fmt.Errorf("prune notification_logs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notification_log: %w", err)
	}
	return nil
}

// NotificationCount returns the number of retained notification logs.
func (s *Store) NotificationCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialised")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notification_logs: %w", err)
	}
	return n, nil
}
