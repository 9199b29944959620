package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"subwatch/internal/fetch"
	"subwatch/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store persists per-(chat, account) baselines: the last post timestamp and
// the last live status the system recorded for that chat. Baselines are the
// dedup ledger; rows are upserted, never deleted.
type Store interface {
	PostBaseline(ctx context.Context, chat, account int64) (ts time.Time, ok bool, err error)
	SetPostBaseline(ctx context.Context, chat, account int64, ts time.Time) error

	LiveBaseline(ctx context.Context, chat, account int64) (st fetch.Status, ok bool, err error)
	SetLiveBaseline(ctx context.Context, chat, account int64, st fetch.Status) error

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
