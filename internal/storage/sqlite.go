package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"subwatch/internal/fetch"
	"subwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PostBaseline(ctx context.Context, chat, account int64) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_ts FROM post_baseline WHERE chat_id = ? AND account_id = ?`,
		chat, account,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0), true, nil
}

func (s *sqliteStore) SetPostBaseline(ctx context.Context, chat, account int64, ts time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO post_baseline(chat_id, account_id, last_ts, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id, account_id) DO UPDATE SET last_ts=excluded.last_ts, updated_at=excluded.updated_at`,
		chat, account, ts.Unix(), time.Now().Format(time.RFC3339),
	)
	return err
}

func (s *sqliteStore) LiveBaseline(ctx context.Context, chat, account int64) (fetch.Status, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, ErrDisabled
	}
	var st int64
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM live_baseline WHERE chat_id = ? AND account_id = ?`,
		chat, account,
	).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return fetch.Status(st), true, nil
}

func (s *sqliteStore) SetLiveBaseline(ctx context.Context, chat, account int64, st fetch.Status) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO live_baseline(chat_id, account_id, status, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id, account_id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at`,
		chat, account, int64(st), time.Now().Format(time.RFC3339),
	)
	return err
}
