package storage

import (
	"context"
	"errors"
	"strings"

	logx "cadence/pkg/logx"
)

// Store is the persistence boundary used by the scheduler snapshot path.
type Store interface {
	// Save replaces the stored snapshot with data.
	Save(ctx context.Context, data []byte) error
	// Load returns the stored snapshot, or ErrNotFound if none exists.
	Load(ctx context.Context) ([]byte, error)
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
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
