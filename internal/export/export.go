package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waterlog/internal/projector"
	"waterlog/internal/store"
)

// Exporter projects one user-month and hands it to a SummaryWriter.
type Exporter struct {
	users     store.UserStore
	projector *projector.Projector
	writer    SummaryWriter
}

func NewExporter(users store.UserStore, projector *projector.Projector, writer SummaryWriter) *Exporter {
	return &Exporter{users: users, projector: projector, writer: writer}
}

// ExportMonth writes the user's month summary. Days after now in the
// user's timezone are not included.
func (e *Exporter) ExportMonth(ctx context.Context, userID string, year int, month time.Month, now time.Time) (string, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}

	days, err := e.projector.MonthSummary(ctx, userID, year, month, now)
	if err != nil {
		return "", fmt.Errorf("project month: %w", err)
	}

	ref, err := e.writer.WriteMonth(ctx, user, year, month, days)
	if err != nil {
		return "", fmt.Errorf("write month: %w", err)
	}

	slog.InfoContext(ctx, "Month summary exported",
		"user_id", userID,
		"year", year,
		"month", int(month),
		"days", len(days),
		"ref", ref)
	return ref, nil
}
