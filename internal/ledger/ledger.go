// Package ledger is the aggregation core: it folds accepted intake
// events into per-day totals and answers target comparisons. Day
// boundaries always come from the user's stored timezone via
// internal/calendar.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waterlog/internal/amqp"
	"waterlog/internal/calendar"
	"waterlog/internal/core"
	"waterlog/internal/store"
)

// EventPublisher pushes accepted intakes onto the message bus for the
// reminder worker. Nil publishers are tolerated: delivery is best effort
// and never fails the write.
type EventPublisher interface {
	PublishIntakeRecorded(ctx context.Context, msg *amqp.IntakeRecordedMessage) error
}

// Ledger orchestrates intake writes and status reads over the store
// ports.
type Ledger struct {
	users   store.UserStore
	intake  store.IntakeWriter
	records store.RecordReader
	events  EventPublisher
}

func New(st store.Store, events EventPublisher) *Ledger {
	return &Ledger{
		users:   st,
		intake:  st,
		records: st,
		events:  events,
	}
}

// RecordIntake validates and appends one intake event, returning the new
// day total. The total increment happens atomically in the store; this
// method never reads the old total to compute the new one. Repeating the
// call with the same amount adds again: this is an accumulator, and
// callers own double-submit protection.
func (l *Ledger) RecordIntake(ctx context.Context, userID string, amount int64, now time.Time) (int64, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return 0, err
	}

	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}

	dayKey := calendar.DayKey(now, user.Location())
	newTotal, err := l.intake.AddIntake(ctx, userID, dayKey, amount, now)
	if err != nil {
		return 0, fmt.Errorf("add intake: %w", err)
	}

	l.publishIntake(ctx, user, dayKey, amount, newTotal)

	return newTotal, nil
}

// TodayStatus reads the current totals without mutating anything. An
// absent record is a legitimate empty day (total 0); storage failures
// propagate instead of masquerading as one.
func (l *Ledger) TodayStatus(ctx context.Context, userID string, now time.Time) (core.DayStatus, error) {
	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return core.DayStatus{}, fmt.Errorf("resolve user: %w", err)
	}

	dayKey := calendar.DayKey(now, user.Location())
	rec, err := l.records.Record(ctx, userID, dayKey)
	if err != nil {
		return core.DayStatus{}, fmt.Errorf("read day record: %w", err)
	}

	var total int64
	if rec != nil {
		total = rec.TotalDrank
	}
	return core.NewDayStatus(dayKey, total, user.WaterTarget), nil
}

// TargetReached reports whether today's total meets the user's target.
func (l *Ledger) TargetReached(ctx context.Context, userID string, now time.Time) (bool, error) {
	status, err := l.TodayStatus(ctx, userID, now)
	if err != nil {
		return false, err
	}
	return status.TargetReached(), nil
}

// SetTarget updates the daily goal. Past days' stored totals are never
// rescaled; only subsequent status reads compare against the new target.
func (l *Ledger) SetTarget(ctx context.Context, userID string, target int64) error {
	if err := core.ValidateTarget(target); err != nil {
		return err
	}
	if err := l.users.SetTarget(ctx, userID, target); err != nil {
		return fmt.Errorf("set target: %w", err)
	}
	return nil
}

func (l *Ledger) publishIntake(ctx context.Context, user core.User, dayKey string, amount, newTotal int64) {
	if l.events == nil {
		return
	}
	msg := amqp.NewIntakeRecordedMessage(user.ID, dayKey, amount, newTotal, user.WaterTarget, user.Language)
	if err := l.events.PublishIntakeRecorded(ctx, msg); err != nil {
		// The write already succeeded; losing a reminder is acceptable.
		slog.ErrorContext(ctx, "Failed to publish intake event",
			"error", err,
			"user_id", user.ID,
			"day_key", dayKey)
	}
}
