// Package notify builds reminder message text. It is pure: delivery is
// someone else's job.
package notify

import (
	"waterlog/internal/core"
	"waterlog/internal/locale"
)

// BuildReminder renders the remaining-amount message for today's totals.
// With the target met (or no positive target configured) it returns the
// congratulation text instead. The returned text embeds whatever remaining
// value holds now; later target changes never rewrite already-built text.
func BuildReminder(totalDrank, target int64, table locale.Table) string {
	if target <= 0 {
		return table.TargetDone()
	}
	remaining := core.Remaining(totalDrank, target)
	if remaining <= 0 {
		return table.TargetDone()
	}
	return table.Remaining(remaining)
}
