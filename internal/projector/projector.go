// Package projector derives week and month views from the per-day
// aggregates the store already holds. It never recomputes totals from
// raw logs and never writes.
package projector

import (
	"context"
	"fmt"
	"time"

	"waterlog/internal/calendar"
	"waterlog/internal/core"
	"waterlog/internal/store"
)

type Projector struct {
	users   store.UserStore
	records store.RecordReader
}

func New(st store.Store) *Projector {
	return &Projector{users: st, records: st}
}

// WeekSummary returns one entry per day-key of the week containing
// reference, in order from Sunday. Days without a record carry a nil
// Record. With wholeWeek false the sequence stops at reference's day.
func (p *Projector) WeekSummary(ctx context.Context, userID string, reference time.Time, wholeWeek bool) ([]core.DaySummary, error) {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	days := calendar.WeekDays(reference, user.Location(), wholeWeek)
	return p.project(ctx, userID, days)
}

// MonthSummary returns one entry per day of the month up to and including
// the day containing now in the user's timezone.
func (p *Projector) MonthSummary(ctx context.Context, userID string, year int, month time.Month, now time.Time) ([]core.DaySummary, error) {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	days := calendar.MonthDays(year, month, now, user.Location())
	return p.project(ctx, userID, days)
}

func (p *Projector) project(ctx context.Context, userID string, days []string) ([]core.DaySummary, error) {
	records, err := p.records.Records(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	out := make([]core.DaySummary, 0, len(days))
	for _, day := range days {
		out = append(out, core.DaySummary{DayKey: day, Record: records[day]})
	}
	return out, nil
}
