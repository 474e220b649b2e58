package amqp

import "testing"

func TestNewIntakeRecordedMessage(t *testing.T) {
	msg := NewIntakeRecordedMessage("U1", "2025-05-24", 300, 1200, 1500, "zh-TW")

	if msg.MessageID == "" {
		t.Fatalf("message id must be set")
	}
	if msg.PreviousTotal != 900 {
		t.Fatalf("previous total: got %d, want 900", msg.PreviousTotal)
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("timestamp must be set")
	}

	other := NewIntakeRecordedMessage("U1", "2025-05-24", 300, 1200, 1500, "zh-TW")
	if other.MessageID == msg.MessageID {
		t.Fatalf("message ids must be unique")
	}
}

func TestCrossedTarget(t *testing.T) {
	cases := []struct {
		name                      string
		previous, newTotal, limit int64
		want                      bool
	}{
		{"crosses exactly", 1400, 1500, 1500, true},
		{"crosses past", 1400, 1700, 1500, true},
		{"already met", 1500, 1800, 1500, false},
		{"still below", 100, 400, 1500, false},
		{"no target", 100, 400, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &IntakeRecordedMessage{
				PreviousTotal: tc.previous,
				NewTotal:      tc.newTotal,
				Target:        tc.limit,
			}
			if got := msg.CrossedTarget(); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntakeRecordedMessageJSONRoundTrip(t *testing.T) {
	msg := NewIntakeRecordedMessage("U1", "2025-05-24", 300, 1200, 1500, "ja")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := IntakeRecordedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.UserID != msg.UserID || got.NewTotal != msg.NewTotal || got.MessageID != msg.MessageID || got.Language != "ja" {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, msg)
	}

	if _, err := IntakeRecordedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
