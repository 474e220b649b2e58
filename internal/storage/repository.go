package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"waterlog/internal/core"
	"waterlog/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable Store backend.
type SQLiteRepository struct {
	db       *sql.DB
	notifier *store.Notifier
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows a single writer; serialize access through one
	// connection instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		notifier: store.NewNotifier(),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// storageErr tags a backend failure so callers can tell an outage from a
// legitimately empty day.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(core.ErrStorageUnavailable, err))
}

func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, picture_url, language, timezone, water_target, is_active, joined_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name   = excluded.display_name,
			picture_url    = excluded.picture_url,
			language       = excluded.language,
			timezone       = excluded.timezone,
			is_active      = excluded.is_active,
			last_active_at = excluded.last_active_at`,
		u.ID, u.DisplayName, u.PictureURL, u.Language, u.Timezone,
		u.WaterTarget, boolToInt(u.IsActive), u.JoinedAt.UTC(), u.LastActiveAt.UTC(),
	)
	if err != nil {
		return storageErr("save user", err)
	}

	slog.InfoContext(ctx, "User saved", "user_id", u.ID, "language", u.Language, "timezone", u.Timezone)
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	var (
		u        core.User
		isActive int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, picture_url, language, timezone, water_target, is_active, joined_at, last_active_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.DisplayName, &u.PictureURL, &u.Language, &u.Timezone,
		&u.WaterTarget, &isActive, &u.JoinedAt, &u.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, storageErr("get user", err)
	}
	u.IsActive = isActive != 0
	return u, nil
}

func (r *SQLiteRepository) SetTarget(ctx context.Context, id string, target int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET water_target = ? WHERE id = ?`, target, id)
	if err != nil {
		return storageErr("set target", err)
	}
	return requireRow(res, core.ErrUserNotFound)
}

func (r *SQLiteRepository) SetLanguage(ctx context.Context, id, language, timezone string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET language = ?, timezone = ? WHERE id = ?`, language, timezone, id)
	if err != nil {
		return storageErr("set language", err)
	}
	return requireRow(res, core.ErrUserNotFound)
}

func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, last_active_at = ? WHERE id = ?`,
		boolToInt(active), at.UTC(), id)
	if err != nil {
		return storageErr("set active", err)
	}
	return requireRow(res, core.ErrUserNotFound)
}

// AddIntake writes the log entry and the total delta in one transaction.
// The total is bumped in SQL, never recomputed from a prior read, so two
// concurrent intakes cannot lose an update. Log keys are millisecond
// timestamp plus a per-millisecond sequence, keeping simultaneous events
// distinct.
func (r *SQLiteRepository) AddIntake(ctx context.Context, userID, dayKey string, amount int64, loggedAt time.Time) (int64, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin intake tx", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrUserNotFound
	}
	if err != nil {
		return 0, storageErr("check user", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_records (user_id, day_key, total_drank)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, day_key) DO UPDATE SET
			total_drank = total_drank + excluded.total_drank`,
		userID, dayKey, amount,
	); err != nil {
		return 0, storageErr("increment day total", err)
	}

	millis := loggedAt.UnixMilli()
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM intake_logs
		WHERE user_id = ? AND day_key = ? AND logged_at_ms = ?`,
		userID, dayKey, millis,
	).Scan(&seq); err != nil {
		return 0, storageErr("count colliding logs", err)
	}

	logKey := fmt.Sprintf("%d-%d", millis, seq)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO intake_logs (user_id, day_key, log_key, amount, logged_at_ms)
		VALUES (?, ?, ?, ?, ?)`,
		userID, dayKey, logKey, amount, millis,
	); err != nil {
		return 0, storageErr("append intake log", err)
	}

	var newTotal int64
	if err := tx.QueryRowContext(ctx, `
		SELECT total_drank FROM daily_records WHERE user_id = ? AND day_key = ?`,
		userID, dayKey,
	).Scan(&newTotal); err != nil {
		return 0, storageErr("read new total", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit intake", err)
	}

	slog.InfoContext(ctx, "Intake recorded",
		"user_id", userID,
		"day_key", dayKey,
		"amount_ml", amount,
		"total_ml", newTotal,
		"log_key", logKey)

	if rec, err := r.Record(ctx, userID, dayKey); err == nil && rec != nil {
		r.notifier.Notify(userID, *rec)
	}

	return newTotal, nil
}

func (r *SQLiteRepository) Record(ctx context.Context, userID, dayKey string) (*core.DailyRecord, error) {
	records, err := r.Records(ctx, userID, []string{dayKey})
	if err != nil {
		return nil, err
	}
	return records[dayKey], nil
}

func (r *SQLiteRepository) Records(ctx context.Context, userID string, dayKeys []string) (map[string]*core.DailyRecord, error) {
	out := make(map[string]*core.DailyRecord, len(dayKeys))
	if len(dayKeys) == 0 {
		return out, nil
	}

	wanted := make(map[string]bool, len(dayKeys))
	args := make([]any, 0, len(dayKeys)+1)
	args = append(args, userID)
	placeholders := ""
	for i, key := range dayKeys {
		wanted[key] = true
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, key)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT day_key, total_drank FROM daily_records
		WHERE user_id = ? AND day_key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, storageErr("read day totals", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := &core.DailyRecord{}
		if err := rows.Scan(&rec.DayKey, &rec.TotalDrank); err != nil {
			return nil, storageErr("scan day total", err)
		}
		if wanted[rec.DayKey] {
			out[rec.DayKey] = rec
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate day totals", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	logRows, err := r.db.QueryContext(ctx, `
		SELECT day_key, log_key, amount, logged_at_ms FROM intake_logs
		WHERE user_id = ? AND day_key IN (`+placeholders+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, storageErr("read intake logs", err)
	}
	defer logRows.Close()

	for logRows.Next() {
		var (
			dayKey string
			ev     core.IntakeEvent
			millis int64
		)
		if err := logRows.Scan(&dayKey, &ev.Key, &ev.Amount, &millis); err != nil {
			return nil, storageErr("scan intake log", err)
		}
		ev.LoggedAt = time.UnixMilli(millis)
		if rec := out[dayKey]; rec != nil {
			rec.Logs = append(rec.Logs, ev)
		}
	}
	if err := logRows.Err(); err != nil {
		return nil, storageErr("iterate intake logs", err)
	}

	return out, nil
}

func (r *SQLiteRepository) WatchRecords(ctx context.Context, userID string) (<-chan core.DailyRecord, func(), error) {
	ch, cancel := r.notifier.Watch(ctx, userID)
	return ch, cancel, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
