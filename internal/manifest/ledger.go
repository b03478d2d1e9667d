// Package manifest 在缓存根目录下维护 sqlite 同步台账（manifest.db）。
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// FileName 是台账在缓存根目录下的文件名。
const FileName = "manifest.db"

// Record 是某个 symbol@time_unit 的最近同步状态。
type Record struct {
	Symbol        string `json:"symbol" yaml:"symbol"`
	TimeUnit      string `json:"time_unit" yaml:"time_unit"`
	Rows          int64  `json:"rows" yaml:"rows"`
	MinTime       int64  `json:"min_time" yaml:"min_time"`
	MaxTime       int64  `json:"max_time" yaml:"max_time"`
	Fetched       int64  `json:"fetched" yaml:"fetched"`
	Added         int64  `json:"added" yaml:"added"`
	LastSyncAt    int64  `json:"last_sync_at" yaml:"last_sync_at"`
	LastAttemptAt int64  `json:"last_attempt_at" yaml:"last_attempt_at"`
	LastRunID     string `json:"last_run_id" yaml:"last_run_id"`
	LastError     string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

type Ledger struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("manifest path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{path: path, db: db}, nil
}

func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Record 写入一次同步结果；失败时只更新 last_error 与尝试时间，保留上次成功的统计。
func (l *Ledger) Record(ctx context.Context, rec Record) error {
	if rec.Symbol == "" || rec.TimeUnit == "" {
		return fmt.Errorf("symbol/time_unit 不能为空")
	}
	if rec.LastAttemptAt == 0 {
		rec.LastAttemptAt = time.Now().UnixMilli()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return fmt.Errorf("manifest ledger closed")
	}
	if rec.LastError != "" {
		_, err := l.db.ExecContext(ctx, `
			INSERT INTO sync_manifest (symbol, time_unit, last_attempt_at, last_run_id, last_error)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(symbol, time_unit) DO UPDATE SET
			    last_attempt_at=excluded.last_attempt_at,
			    last_run_id=excluded.last_run_id,
			    last_error=excluded.last_error`,
			rec.Symbol, rec.TimeUnit, rec.LastAttemptAt, rec.LastRunID, rec.LastError)
		return err
	}
	if rec.LastSyncAt == 0 {
		rec.LastSyncAt = rec.LastAttemptAt
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_manifest (symbol, time_unit, rows, min_time, max_time, fetched, added,
		                           last_sync_at, last_attempt_at, last_run_id, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(symbol, time_unit) DO UPDATE SET
		    rows=excluded.rows,
		    min_time=excluded.min_time,
		    max_time=excluded.max_time,
		    fetched=excluded.fetched,
		    added=excluded.added,
		    last_sync_at=excluded.last_sync_at,
		    last_attempt_at=excluded.last_attempt_at,
		    last_run_id=excluded.last_run_id,
		    last_error=''`,
		rec.Symbol, rec.TimeUnit, rec.Rows, rec.MinTime, rec.MaxTime, rec.Fetched, rec.Added,
		rec.LastSyncAt, rec.LastAttemptAt, rec.LastRunID)
	return err
}

// List 返回全部记录；unit 非空时只返回该周期。
func (l *Ledger) List(ctx context.Context, unit string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, fmt.Errorf("manifest ledger closed")
	}
	query := `SELECT ` + columns + ` FROM sync_manifest`
	var args []any
	if unit != "" {
		query += ` WHERE time_unit = ?`
		args = append(args, unit)
	}
	query += ` ORDER BY symbol, time_unit`
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get 返回单条记录，不存在时 ok=false。
func (l *Ledger) Get(ctx context.Context, symbol, unit string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return Record{}, false, fmt.Errorf("manifest ledger closed")
	}
	row := l.db.QueryRowContext(ctx, `SELECT `+columns+` FROM sync_manifest WHERE symbol = ? AND time_unit = ?`, symbol, unit)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

const columns = `symbol, time_unit, rows, min_time, max_time, fetched, added, last_sync_at, last_attempt_at, last_run_id, last_error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	err := s.Scan(&r.Symbol, &r.TimeUnit, &r.Rows, &r.MinTime, &r.MaxTime, &r.Fetched, &r.Added,
		&r.LastSyncAt, &r.LastAttemptAt, &r.LastRunID, &r.LastError)
	return r, err
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_manifest (
			symbol          TEXT NOT NULL,
			time_unit       TEXT NOT NULL,
			rows            INTEGER NOT NULL DEFAULT 0,
			min_time        INTEGER NOT NULL DEFAULT 0,
			max_time        INTEGER NOT NULL DEFAULT 0,
			fetched         INTEGER NOT NULL DEFAULT 0,
			added           INTEGER NOT NULL DEFAULT 0,
			last_sync_at    INTEGER NOT NULL DEFAULT 0,
			last_attempt_at INTEGER NOT NULL DEFAULT 0,
			last_run_id     TEXT NOT NULL DEFAULT '',
			last_error      TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (symbol, time_unit)
		);`)
	return err
}
