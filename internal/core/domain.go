package core

import (
	"errors"
	"strings"
	"time"
)

// DefaultWaterTarget is assigned to every new user until they change it.
const DefaultWaterTarget int64 = 1000

type (
	// User is an account keyed by the opaque identifier the chat platform
	// assigns. Timezone is resolved once at creation and reused for all
	// day-bucketing afterwards.
	User struct {
		ID           string
		DisplayName  string
		PictureURL   string
		Language     string
		Timezone     string
		WaterTarget  int64 // millilitres per day
		IsActive     bool
		JoinedAt     time.Time
		LastActiveAt time.Time
	}

	// IntakeEvent is a single accepted drink log entry. Key is unique
	// within the day even when two events share a millisecond timestamp.
	IntakeEvent struct {
		Key      string
		Amount   int64 // millilitres
		LoggedAt time.Time
	}

	// DailyRecord aggregates one user's intake for one calendar day.
	// TotalDrank always equals the sum of Logs amounts; the store keeps
	// both in a single transactional update.
	DailyRecord struct {
		DayKey     string
		TotalDrank int64
		Logs       []IntakeEvent
	}

	// DayStatus is the answer to "how am I doing today".
	DayStatus struct {
		DayKey     string
		TotalDrank int64
		Target     int64
		Remaining  int64
	}

	// DaySummary pairs a day-key with its record, nil when nothing was
	// logged that day. Week and month views are ordered slices of these.
	DaySummary struct {
		DayKey string
		Record *DailyRecord
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid intake amount")
	ErrInvalidTarget      = errors.New("invalid water target")
	ErrUserNotFound       = errors.New("user not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownBackend     = errors.New("unknown storage backend")
)

// ValidateAmount accepts positive millilitre amounts only. Zero and
// negative values are rejected before they reach any log.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateTarget accepts positive daily targets only.
func ValidateTarget(target int64) error {
	if target <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("empty user id")
	}
	if err := ValidateTarget(u.WaterTarget); err != nil {
		return err
	}
	if u.Timezone == "" {
		return errors.New("empty timezone")
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return errors.New("unknown timezone " + u.Timezone)
	}
	return nil
}

// Location resolves the user's stored timezone, falling back to UTC if
// the stored name no longer loads.
func (u User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Remaining is max(0, target-total). Past totals are never rescaled when
// the target changes; only future status reads see the new target.
func Remaining(totalDrank, target int64) int64 {
	if r := target - totalDrank; r > 0 {
		return r
	}
	return 0
}

// NewDayStatus derives the status triple for a day.
func NewDayStatus(dayKey string, totalDrank, target int64) DayStatus {
	return DayStatus{
		DayKey:     dayKey,
		TotalDrank: totalDrank,
		Target:     target,
		Remaining:  Remaining(totalDrank, target),
	}
}

// TargetReached reports whether the day's goal is met.
func (s DayStatus) TargetReached() bool {
	return s.TotalDrank >= s.Target
}

// Sum recomputes the total from the log entries. Used by tests and
// consistency checks; the stored TotalDrank is authoritative.
func (r DailyRecord) Sum() int64 {
	var sum int64
	for _, e := range r.Logs {
		sum += e.Amount
	}
	return sum
}
