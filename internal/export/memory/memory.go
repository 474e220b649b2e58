// Package memory is an in-process SummaryWriter for tests and local
// runs without spreadsheet credentials.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waterlog/internal/core"
	ports "waterlog/internal/export"
)

type Export struct {
	UserID string
	Year   int
	Month  time.Month
	Days   []core.DaySummary
}

type Writer struct {
	mu      sync.Mutex
	exports []Export
}

var _ ports.SummaryWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// WriteMonth stores the export and returns a synthetic reference.
func (w *Writer) WriteMonth(_ context.Context, user core.User, year int, month time.Month, days []core.DaySummary) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exports = append(w.exports, Export{
		UserID: user.ID,
		Year:   year,
		Month:  month,
		Days:   append([]core.DaySummary(nil), days...),
	})
	return fmt.Sprintf("mem:%d", len(w.exports)), nil
}

// Exports returns a copy of everything written so far.
func (w *Writer) Exports() []Export {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Export(nil), w.exports...)
}
