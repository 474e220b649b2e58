// Package bot turns verified webhook events into ledger operations and
// replies. It is the Go rendition of the chat flow: follow greets and
// registers, numeric text logs water, keywords switch language or link
// the tracking site.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"waterlog/internal/core"
	"waterlog/internal/ledger"
	"waterlog/internal/line"
	"waterlog/internal/locale"
	"waterlog/internal/store"
)

// Messenger is the chat platform surface the handler needs.
type Messenger interface {
	ReplyMessage(ctx context.Context, replyToken, text string) error
	PushMessage(ctx context.Context, to, text string) error
	GetProfile(ctx context.Context, userID string) (*line.Profile, error)
}

type Handler struct {
	users     store.UserStore
	ledger    *ledger.Ledger
	messenger Messenger
	now       func() time.Time
}

func NewHandler(users store.UserStore, ledger *ledger.Ledger, messenger Messenger) *Handler {
	return &Handler{
		users:     users,
		ledger:    ledger,
		messenger: messenger,
		now:       time.Now,
	}
}

// WithClock substitutes the time source, for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// HandleEvent dispatches one webhook event. Unsupported event types are
// skipped without error.
func (h *Handler) HandleEvent(ctx context.Context, ev line.Event) error {
	switch ev.Type {
	case line.EventFollow:
		return h.handleFollow(ctx, ev)
	case line.EventUnfollow:
		return h.handleUnfollow(ctx, ev)
	case line.EventMessage:
		if ev.Message == nil || ev.Message.Type != "text" {
			return nil
		}
		return h.handleText(ctx, ev)
	default:
		slog.InfoContext(ctx, "Skipping unsupported event", "event_type", ev.Type)
		return nil
	}
}

func (h *Handler) handleFollow(ctx context.Context, ev line.Event) error {
	userID := ev.Source.UserID
	now := h.now()

	user, err := h.registerUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	table := locale.Resolve(user.Language)
	if ev.ReplyToken != "" {
		if err := h.messenger.ReplyMessage(ctx, ev.ReplyToken, table.Welcome(user.DisplayName)); err != nil {
			return fmt.Errorf("send welcome: %w", err)
		}
	}

	slog.InfoContext(ctx, "User joined", "user_id", userID, "language", user.Language)
	return nil
}

func (h *Handler) handleUnfollow(ctx context.Context, ev line.Event) error {
	userID := ev.Source.UserID
	if err := h.users.SetActive(ctx, userID, false, h.now()); err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("deactivate user: %w", err)
	}
	slog.InfoContext(ctx, "User left", "user_id", userID)
	return nil
}

func (h *Handler) handleText(ctx context.Context, ev line.Event) error {
	userID := ev.Source.UserID
	text := strings.TrimSpace(ev.Message.Text)
	now := h.now()

	user, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, core.ErrUserNotFound) {
		// First contact through a message instead of a follow.
		user, err = h.registerUser(ctx, userID, now)
	}
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	if err := h.users.SetActive(ctx, userID, true, now); err != nil {
		slog.WarnContext(ctx, "Failed to bump activity", "error", err, "user_id", userID)
	}

	reply, err := h.buildTextReply(ctx, user, text, now)
	if err != nil {
		return err
	}
	if ev.ReplyToken == "" || reply == "" {
		return nil
	}
	if err := h.messenger.ReplyMessage(ctx, ev.ReplyToken, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (h *Handler) buildTextReply(ctx context.Context, user core.User, text string, now time.Time) (string, error) {
	table := locale.Resolve(user.Language)

	// Language switch commands come first, like the original bot.
	switch strings.ToUpper(text) {
	case "TW":
		return h.switchLanguage(ctx, user.ID, locale.ZhTW)
	case "JP":
		return h.switchLanguage(ctx, user.ID, locale.Ja)
	}

	if locale.IsLoginMessage(text) {
		return table.Login(), nil
	}

	if amount, err := core.ParseAmount(text); err == nil {
		newTotal, err := h.ledger.RecordIntake(ctx, user.ID, amount, now)
		if err != nil {
			return "", fmt.Errorf("record intake: %w", err)
		}
		return table.ReplyTotal(newTotal), nil
	}

	// Anything else gets the general reply with today's running total.
	status, err := h.ledger.TodayStatus(ctx, user.ID, now)
	if err != nil {
		return "", fmt.Errorf("read today status: %w", err)
	}
	return table.GeneralReply(status.TotalDrank), nil
}

func (h *Handler) switchLanguage(ctx context.Context, userID string, code locale.Code) (string, error) {
	table := locale.Resolve(string(code))
	if err := h.users.SetLanguage(ctx, userID, string(code), table.Timezone); err != nil {
		return "", fmt.Errorf("switch language: %w", err)
	}
	slog.InfoContext(ctx, "Language switched", "user_id", userID, "language", code)
	return table.LangSwitched(), nil
}

// registerUser upserts the account from the platform profile. A failed
// profile fetch degrades to placeholder fields rather than refusing the
// follow.
func (h *Handler) registerUser(ctx context.Context, userID string, now time.Time) (core.User, error) {
	profile := line.Profile{UserID: userID, DisplayName: "朋友"}
	if fetched, err := h.messenger.GetProfile(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Profile fetch failed, using placeholders", "error", err, "user_id", userID)
	} else {
		profile = *fetched
	}
	return h.RegisterProfile(ctx, profile, now)
}

// RegisterProfile upserts the account described by profile. The
// timezone is resolved here, once, from the profile language; day
// bucketing uses this stored zone from now on. A re-register keeps the
// chosen target and the original join date.
func (h *Handler) RegisterProfile(ctx context.Context, profile line.Profile, now time.Time) (core.User, error) {
	table := locale.Resolve(profile.Language)
	user := core.User{
		ID:           profile.UserID,
		DisplayName:  profile.DisplayName,
		PictureURL:   profile.PictureURL,
		Language:     string(table.Code),
		Timezone:     table.Timezone,
		WaterTarget:  core.DefaultWaterTarget,
		IsActive:     true,
		JoinedAt:     now,
		LastActiveAt: now,
	}

	if existing, err := h.users.GetUser(ctx, profile.UserID); err == nil {
		user.WaterTarget = existing.WaterTarget
		user.JoinedAt = existing.JoinedAt
		user.Language = existing.Language
		user.Timezone = existing.Timezone
	}

	if err := h.users.SaveUser(ctx, user); err != nil {
		return core.User{}, err
	}
	return user, nil
}
