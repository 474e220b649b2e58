// Package worker consumes intake events and pushes progress messages
// back to the chat.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"waterlog/internal/amqp"
	"waterlog/internal/locale"
	"waterlog/internal/notify"
)

// MessageSender is the push surface the worker needs.
type MessageSender interface {
	PushMessage(ctx context.Context, to, text string) error
}

// ReminderWorker turns intake-recorded events into push messages: a
// congratulation when the write crossed the daily target, otherwise a
// remaining-amount nudge.
type ReminderWorker struct {
	sender MessageSender
}

func NewReminderWorker(sender MessageSender) *ReminderWorker {
	return &ReminderWorker{sender: sender}
}

// HandleIntakeRecorded processes a single intake event.
func (w *ReminderWorker) HandleIntakeRecorded(ctx context.Context, msg *amqp.IntakeRecordedMessage) error {
	slog.InfoContext(ctx, "Processing intake event",
		"message_id", msg.MessageID,
		"user_id", msg.UserID,
		"day_key", msg.DayKey,
		"amount_ml", msg.Amount,
		"total_ml", msg.NewTotal)

	table := locale.Resolve(msg.Language)

	var text string
	if msg.CrossedTarget() {
		text = table.TargetDone()
	} else {
		text = notify.BuildReminder(msg.NewTotal, msg.Target, table)
	}

	if err := w.sender.PushMessage(ctx, msg.UserID, text); err != nil {
		return fmt.Errorf("push reminder: %w", err)
	}

	slog.InfoContext(ctx, "Reminder pushed",
		"message_id", msg.MessageID,
		"user_id", msg.UserID,
		"crossed_target", msg.CrossedTarget())
	return nil
}
