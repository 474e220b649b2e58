package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/internal/core"
	"waterlog/internal/ledger"
	"waterlog/internal/line"
	"waterlog/internal/store/memory"
)

type fakeMessenger struct {
	replies    []string
	pushes     []string
	profile    *line.Profile
	profileErr error
}

func (m *fakeMessenger) ReplyMessage(_ context.Context, _, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

func (m *fakeMessenger) PushMessage(_ context.Context, _, text string) error {
	m.pushes = append(m.pushes, text)
	return nil
}

func (m *fakeMessenger) GetProfile(_ context.Context, _ string) (*line.Profile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profile, nil
}

func newTestHandler(t *testing.T, messenger *fakeMessenger) (*Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	h := NewHandler(st, ledger.New(st, nil), messenger)
	h.WithClock(func() time.Time {
		return time.Date(2025, 5, 24, 10, 0, 0, 0, time.UTC)
	})
	return h, st
}

func textEvent(userID, text string) line.Event {
	return line.Event{
		Type:       line.EventMessage,
		ReplyToken: "tok",
		Source:     line.Source{UserID: userID},
		Message:    &line.Message{Type: "text", Text: text},
	}
}

func TestFollowRegistersUser(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{
		UserID:      "U1",
		DisplayName: "Mei",
		Language:    "ja",
	}}
	h, st := newTestHandler(t, messenger)

	ev := line.Event{Type: line.EventFollow, ReplyToken: "tok", Source: line.Source{UserID: "U1"}}
	require.NoError(t, h.HandleEvent(context.Background(), ev))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Mei", user.DisplayName)
	assert.Equal(t, "ja", user.Language)
	assert.Equal(t, "Asia/Tokyo", user.Timezone)
	assert.Equal(t, int64(core.DefaultWaterTarget), user.WaterTarget)
	assert.True(t, user.IsActive)

	require.Len(t, messenger.replies, 1)
	assert.Contains(t, messenger.replies[0], "Mei")
}

func TestFollowProfileFailureDegrades(t *testing.T) {
	messenger := &fakeMessenger{profileErr: errors.New("profile api down")}
	h, st := newTestHandler(t, messenger)

	ev := line.Event{Type: line.EventFollow, ReplyToken: "tok", Source: line.Source{UserID: "U1"}}
	require.NoError(t, h.HandleEvent(context.Background(), ev))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "zh-TW", user.Language)
	assert.Equal(t, "Asia/Taipei", user.Timezone)
}

func TestRefollowKeepsTarget(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1", DisplayName: "Mei"}}
	h, st := newTestHandler(t, messenger)

	ev := line.Event{Type: line.EventFollow, ReplyToken: "tok", Source: line.Source{UserID: "U1"}}
	require.NoError(t, h.HandleEvent(context.Background(), ev))
	require.NoError(t, st.SetTarget(context.Background(), "U1", 2000))

	require.NoError(t, h.HandleEvent(context.Background(), ev))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), user.WaterTarget)
}

func TestUnfollowDeactivates(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1"}}
	h, st := newTestHandler(t, messenger)

	follow := line.Event{Type: line.EventFollow, Source: line.Source{UserID: "U1"}}
	require.NoError(t, h.HandleEvent(context.Background(), follow))

	unfollow := line.Event{Type: line.EventUnfollow, Source: line.Source{UserID: "U1"}}
	require.NoError(t, h.HandleEvent(context.Background(), unfollow))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestUnfollowUnknownUserIsNoop(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMessenger{})
	ev := line.Event{Type: line.EventUnfollow, Source: line.Source{UserID: "nobody"}}
	assert.NoError(t, h.HandleEvent(context.Background(), ev))
}

func TestNumericMessageRecordsIntake(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1", DisplayName: "Mei"}}
	h, st := newTestHandler(t, messenger)

	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", "350")))
	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", " 150 ")))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	rec, err := st.Record(context.Background(), "U1", "2025-05-24")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(500), rec.TotalDrank)
	assert.True(t, user.IsActive)

	require.Len(t, messenger.replies, 2)
	assert.Contains(t, messenger.replies[1], "500mL")
}

func TestNonNumericMessageRepliesTodayTotal(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1"}}
	h, _ := newTestHandler(t, messenger)

	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", "250")))
	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", "hello there")))

	require.Len(t, messenger.replies, 2)
	assert.Contains(t, messenger.replies[1], "250mL")
}

func TestLoginKeywordRepliesLink(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1"}}
	h, _ := newTestHandler(t, messenger)

	for _, kw := range []string{"登入", "LOGIN", "ログイン"} {
		require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", kw)))
	}

	require.Len(t, messenger.replies, 3)
	for _, reply := range messenger.replies {
		assert.Contains(t, reply, "https://")
	}
}

func TestLanguageSwitch(t *testing.T) {
	messenger := &fakeMessenger{profile: &line.Profile{UserID: "U1"}}
	h, st := newTestHandler(t, messenger)

	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", "jp")))

	user, err := st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "ja", user.Language)
	assert.Equal(t, "Asia/Tokyo", user.Timezone)
	require.Len(t, messenger.replies, 1)
	assert.True(t, strings.Contains(messenger.replies[0], "日本語"))

	require.NoError(t, h.HandleEvent(context.Background(), textEvent("U1", "TW")))
	user, err = st.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "zh-TW", user.Language)
	assert.Equal(t, "Asia/Taipei", user.Timezone)
}

func TestNonTextMessageIgnored(t *testing.T) {
	messenger := &fakeMessenger{}
	h, _ := newTestHandler(t, messenger)

	ev := line.Event{
		Type:    line.EventMessage,
		Source:  line.Source{UserID: "U1"},
		Message: &line.Message{Type: "sticker"},
	}
	require.NoError(t, h.HandleEvent(context.Background(), ev))
	assert.Empty(t, messenger.replies)
}
