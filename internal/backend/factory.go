// Package backend selects and builds the data store.
package backend

import (
	"fmt"
	"log/slog"

	"waterlog/internal/core"
	"waterlog/internal/store"
	"waterlog/internal/store/memory"
	"waterlog/internal/storage"
)

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}

// Config holds what each backend needs to start.
type Config struct {
	Type         Type
	SQLiteDBPath string
}

// Open builds the store named by cfg.Type. The caller owns Close.
func Open(cfg Config) (store.Store, error) {
	switch cfg.Type {
	case SQLite:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("sqlite backend: database path is required")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		slog.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case Memory:
		slog.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownBackend, cfg.Type)
	}
}
