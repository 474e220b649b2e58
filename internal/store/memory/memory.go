// Package memory is the in-process Store used by tests and the "memory"
// backend. Semantics mirror the SQLite backend, including the atomic
// total increment and log-key uniqueness.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waterlog/internal/core"
	"waterlog/internal/store"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]core.User
	records  map[string]map[string]*core.DailyRecord // userID -> dayKey -> record
	seq      map[string]int64                        // userID+dayKey+millis -> collision counter
	notifier *store.Notifier
	closed   bool
}

func New() *Store {
	return &Store{
		users:    make(map[string]core.User),
		records:  make(map[string]map[string]*core.DailyRecord),
		seq:      make(map[string]int64),
		notifier: store.NewNotifier(),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) SaveUser(_ context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return core.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) SetTarget(_ context.Context, id string, target int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.WaterTarget = target
	s.users[id] = u
	return nil
}

func (s *Store) SetLanguage(_ context.Context, id, language, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.Language = language
	u.Timezone = timezone
	s.users[id] = u
	return nil
}

func (s *Store) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.IsActive = active
	u.LastActiveAt = at
	s.users[id] = u
	return nil
}

// AddIntake appends the event and bumps the running total under one lock,
// so the two can never be observed diverged and concurrent adds never
// lose an update.
func (s *Store) AddIntake(_ context.Context, userID, dayKey string, amount int64, loggedAt time.Time) (int64, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if _, ok := s.users[userID]; !ok {
		s.mu.Unlock()
		return 0, core.ErrUserNotFound
	}

	if s.records[userID] == nil {
		s.records[userID] = make(map[string]*core.DailyRecord)
	}
	rec := s.records[userID][dayKey]
	if rec == nil {
		rec = &core.DailyRecord{DayKey: dayKey}
		s.records[userID][dayKey] = rec
	}

	millis := loggedAt.UnixMilli()
	seqKey := fmt.Sprintf("%s/%s/%d", userID, dayKey, millis)
	seq := s.seq[seqKey]
	s.seq[seqKey] = seq + 1

	rec.Logs = append(rec.Logs, core.IntakeEvent{
		Key:      fmt.Sprintf("%d-%d", millis, seq),
		Amount:   amount,
		LoggedAt: loggedAt,
	})
	rec.TotalDrank += amount

	newTotal := rec.TotalDrank
	snapshot := cloneRecord(rec)
	s.mu.Unlock()

	s.notifier.Notify(userID, snapshot)
	return newTotal, nil
}

func (s *Store) Record(_ context.Context, userID, dayKey string) (*core.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec := s.records[userID][dayKey]
	if rec == nil {
		return nil, nil
	}
	c := cloneRecord(rec)
	return &c, nil
}

func (s *Store) Records(_ context.Context, userID string, dayKeys []string) (map[string]*core.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]*core.DailyRecord, len(dayKeys))
	for _, key := range dayKeys {
		if rec := s.records[userID][key]; rec != nil {
			c := cloneRecord(rec)
			out[key] = &c
		}
	}
	return out, nil
}

func (s *Store) WatchRecords(ctx context.Context, userID string) (<-chan core.DailyRecord, func(), error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	s.mu.Unlock()

	ch, cancel := s.notifier.Watch(ctx, userID)
	return ch, cancel, nil
}

// Close marks the store unavailable; later calls surface
// core.ErrStorageUnavailable like a real backend outage would.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", core.ErrStorageUnavailable)
	}
	return nil
}

func cloneRecord(rec *core.DailyRecord) core.DailyRecord {
	c := core.DailyRecord{DayKey: rec.DayKey, TotalDrank: rec.TotalDrank}
	c.Logs = append(c.Logs, rec.Logs...)
	return c
}
