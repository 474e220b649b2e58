package line

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Webhook event types the bot handles; others are skipped.
const (
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
	EventMessage  = "message"
)

type (
	// WebhookRequest is the JSON body LINE posts to the webhook URL.
	WebhookRequest struct {
		Destination string  `json:"destination"`
		Events      []Event `json:"events"`
	}

	Event struct {
		Type       string   `json:"type"`
		ReplyToken string   `json:"replyToken"`
		Timestamp  int64    `json:"timestamp"` // milliseconds
		Source     Source   `json:"source"`
		Message    *Message `json:"message"`
	}

	Source struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}

	Message struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Text string `json:"text"`
	}
)

// ErrNoEvents marks the empty-events body LINE sends when verifying the
// webhook URL; it expects a plain 200.
var ErrNoEvents = errors.New("webhook request carries no events")

// ParseWebhookRequest decodes a verified webhook body.
func ParseWebhookRequest(body []byte) (*WebhookRequest, error) {
	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if len(req.Events) == 0 {
		return nil, ErrNoEvents
	}
	return &req, nil
}
