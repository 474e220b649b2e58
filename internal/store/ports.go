// Package store defines the ports the ledger and projector consume.
// Concrete backends live in internal/storage (SQLite) and store/memory.
package store

import (
	"context"
	"time"

	"waterlog/internal/core"
)

type (
	// UserStore owns account state. Reads of unknown users return
	// core.ErrUserNotFound; reads never create records implicitly.
	UserStore interface {
		// SaveUser upserts the full user row.
		SaveUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		SetTarget(ctx context.Context, id string, target int64) error
		SetLanguage(ctx context.Context, id, language, timezone string) error
		SetActive(ctx context.Context, id string, active bool, at time.Time) error
	}

	// IntakeWriter appends one intake event and bumps the day total in a
	// single atomic update. The store computes the new total itself
	// (delta increment, not read-modify-write) so concurrent writers
	// cannot lose an update, and the log entry and total can never
	// diverge. The assigned log key is unique within the day even when
	// two events share a millisecond timestamp.
	IntakeWriter interface {
		AddIntake(ctx context.Context, userID, dayKey string, amount int64, loggedAt time.Time) (newTotal int64, err error)
	}

	// RecordReader reads persisted per-day aggregates. An absent day is
	// (nil, nil): absence is data, not an error. Store failures wrap
	// core.ErrStorageUnavailable and are never collapsed into nil.
	RecordReader interface {
		Record(ctx context.Context, userID, dayKey string) (*core.DailyRecord, error)
		// Records looks up many day-keys at once; absent days are simply
		// missing from the result map.
		Records(ctx context.Context, userID string, dayKeys []string) (map[string]*core.DailyRecord, error)
	}

	// RecordWatcher streams a user's record changes as they are written.
	// The returned cancel func must be called to release the watch.
	RecordWatcher interface {
		WatchRecords(ctx context.Context, userID string) (<-chan core.DailyRecord, func(), error)
	}

	// Store is the full backend surface the application wires up.
	Store interface {
		UserStore
		IntakeWriter
		RecordReader
		RecordWatcher
		Close() error
	}
)
