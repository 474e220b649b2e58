// Package export writes month summaries to an external spreadsheet.
package export

import (
	"context"
	"time"

	"waterlog/internal/core"
)

// SummaryWriter lands one month of day summaries somewhere durable and
// returns a reference to where they went.
type SummaryWriter interface {
	WriteMonth(ctx context.Context, user core.User, year int, month time.Month, days []core.DaySummary) (string, error)
}
