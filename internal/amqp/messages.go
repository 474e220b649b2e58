package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntakeRecordedMessage is published after every accepted intake. The
// worker decides from PreviousTotal/NewTotal whether the event crossed
// the daily target. MessageID deduplicates redelivered messages.
type IntakeRecordedMessage struct {
	MessageID     string    `json:"messageId"`
	UserID        string    `json:"userId"`
	DayKey        string    `json:"dayKey"`
	Amount        int64     `json:"amount"`
	PreviousTotal int64     `json:"previousTotal"`
	NewTotal      int64     `json:"newTotal"`
	Target        int64     `json:"target"`
	Language      string    `json:"language"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewIntakeRecordedMessage(userID, dayKey string, amount, newTotal, target int64, language string) *IntakeRecordedMessage {
	return &IntakeRecordedMessage{
		MessageID:     uuid.NewString(),
		UserID:        userID,
		DayKey:        dayKey,
		Amount:        amount,
		PreviousTotal: newTotal - amount,
		NewTotal:      newTotal,
		Target:        target,
		Language:      language,
		Timestamp:     time.Now(),
	}
}

// CrossedTarget reports whether this intake was the one that met the
// daily goal.
func (m *IntakeRecordedMessage) CrossedTarget() bool {
	return m.Target > 0 && m.PreviousTotal < m.Target && m.NewTotal >= m.Target
}

func (m *IntakeRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func IntakeRecordedMessageFromJSON(data []byte) (*IntakeRecordedMessage, error) {
	var msg IntakeRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
