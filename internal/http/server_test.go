package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/internal/bot"
	"waterlog/internal/core"
	"waterlog/internal/ledger"
	"waterlog/internal/line"
	"waterlog/internal/projector"
	"waterlog/internal/store/memory"
)

const testChannelSecret = "channel-secret"

var testNow = time.Date(2025, 5, 21, 10, 0, 0, 0, time.UTC) // Wednesday

type stubMessenger struct {
	replies []string
}

func (m *stubMessenger) ReplyMessage(_ context.Context, _, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

func (m *stubMessenger) PushMessage(_ context.Context, _, _ string) error { return nil }

func (m *stubMessenger) GetProfile(_ context.Context, userID string) (*line.Profile, error) {
	return &line.Profile{UserID: userID, DisplayName: "Mei"}, nil
}

type stubLogin struct {
	profile *line.Profile
	err     error
}

func (l *stubLogin) ExchangeLogin(_ context.Context, _, _ string) (*line.Profile, error) {
	return l.profile, l.err
}

type testEnv struct {
	server    *Server
	store     *memory.Store
	messenger *stubMessenger
	login     *stubLogin
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	messenger := &stubMessenger{}
	login := &stubLogin{profile: &line.Profile{UserID: "U1", DisplayName: "Mei"}}
	led := ledger.New(st, nil)
	botHandler := bot.NewHandler(st, led, messenger)
	botHandler.WithClock(func() time.Time { return testNow })

	srv := NewServer(Options{
		Addr:              ":0",
		ChannelSecret:     testChannelSecret,
		RequestsPerMinute: 100,
		Bot:               botHandler,
		Ledger:            led,
		Projector:         projector.New(st),
		Hub:               projector.NewHub(st),
		Users:             st,
		Login:             login,
		Auth:              NewTokenIssuer("0123456789abcdef", time.Hour),
	})
	srv.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, store: st, messenger: messenger, login: login}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) loginToken(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"code": "auth-code"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testChannelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(events string) []byte {
	return []byte(fmt.Sprintf(`{"destination":"bot","events":[%s]}`, events))
}

func postWebhook(e *testEnv, t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newTestEnv(t)
	body := webhookBody(`{"type":"follow","source":{"type":"user","userId":"U1"}}`)

	rec := postWebhook(e, t, body, "not-a-signature")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(e, t, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookVerificationPing(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"destination":"bot","events":[]}`)
	rec := postWebhook(e, t, body, signBody(body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRecordsNumericMessage(t *testing.T) {
	e := newTestEnv(t)
	body := webhookBody(`{"type":"message","replyToken":"tok","source":{"type":"user","userId":"U1"},"message":{"type":"text","id":"m1","text":"350"}}`)

	rec := postWebhook(e, t, body, signBody(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec2, err := e.store.Record(context.Background(), "U1", "2025-05-21")
	require.NoError(t, err)
	require.NotNil(t, rec2)
	assert.Equal(t, int64(350), rec2.TotalDrank)
	require.Len(t, e.messenger.replies, 1)
	assert.Contains(t, e.messenger.replies[0], "350mL")
}

func TestLoginIssuesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	user, err := e.store.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Mei", user.DisplayName)

	rec := e.do(t, http.MethodGet, "/api/status", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginExchangeFailure(t *testing.T) {
	e := newTestEnv(t)
	e.login.err = errors.New("bad code")
	e.login.profile = nil

	rec := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"code": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/status", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntakeAndStatus(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPost, "/api/intake", token, map[string]int64{"amount": 350})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/intake", token, map[string]int64{"amount": 150})
	require.Equal(t, http.StatusCreated, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "2025-05-21", status.DayKey)
	assert.Equal(t, int64(500), status.TotalDrank)
	assert.Equal(t, int64(1000), status.Target)
	assert.Equal(t, int64(500), status.Remaining)
	assert.False(t, status.TargetReached)
}

func TestIntakeRejectsInvalidAmount(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPost, "/api/intake", token, map[string]int64{"amount": -10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/intake", token, map[string]any{"amount": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTargetUpdate(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPut, "/api/target", token, map[string]int64{"target": 1500})
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(1500), status.Target)

	rec = e.do(t, http.MethodPut, "/api/target", token, map[string]int64{"target": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLanguageUpdate(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPut, "/api/language", token, map[string]string{"language": "ja"})
	require.Equal(t, http.StatusOK, rec.Code)

	var user userView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "ja", user.Language)
	assert.Equal(t, "Asia/Tokyo", user.Timezone)

	rec = e.do(t, http.MethodPut, "/api/language", token, map[string]string{"language": "fr"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekSummary(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPost, "/api/intake", token, map[string]int64{"amount": 600})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Wednesday with wholeWeek false: Sunday through Wednesday.
	rec = e.do(t, http.MethodGet, "/api/summary/week", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Days, 4)
	assert.Equal(t, "2025-05-18", summary.Days[0].DayKey)
	last := summary.Days[3]
	assert.Equal(t, "2025-05-21", last.DayKey)
	assert.True(t, last.HasRecord)
	assert.Equal(t, int64(600), last.TotalDrank)

	rec = e.do(t, http.MethodGet, "/api/summary/week?whole=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Len(t, summary.Days, 7)

	rec = e.do(t, http.MethodGet, "/api/summary/week?date=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthSummary(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodPost, "/api/intake", token, map[string]int64{"amount": 250})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/summary/month?year=2025&month=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Days, 21)
	assert.Equal(t, "2025-05-01", summary.Days[0].DayKey)
	assert.Equal(t, "2025-05-21", summary.Days[20].DayKey)

	rec = e.do(t, http.MethodGet, "/api/summary/month?month=13", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthSummaryCachesClosedMonths(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	rec := e.do(t, http.MethodGet, "/api/summary/month?year=2025&month=4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Days, 30)

	// A later write to the closed month is not reflected until the
	// cache entry expires.
	_, err := e.store.AddIntake(context.Background(), "U1", "2025-04-10", 500, testNow)
	require.NoError(t, err)

	rec = e.do(t, http.MethodGet, "/api/summary/month?year=2025&month=4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.False(t, second.Days[9].HasRecord)
}

func TestMonthClosed(t *testing.T) {
	now := time.Date(2025, 5, 21, 10, 0, 0, 0, time.UTC)
	assert.True(t, monthClosed(2025, time.April, now))
	assert.False(t, monthClosed(2025, time.May, now))
	assert.False(t, monthClosed(2025, time.June, now))

	// Too close to the month boundary to rule out a timezone still
	// inside it.
	assert.False(t, monthClosed(2025, time.April, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRateLimiterWindow(t *testing.T) {
	limiter := newRateLimiter(3)
	defer limiter.stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.0.0.1:1"))
	}
	assert.False(t, limiter.allow("10.0.0.1:1"))
	assert.True(t, limiter.allow("10.0.0.2:1"))
}

func TestRateLimitResponse(t *testing.T) {
	limiter := newRateLimiter(1)
	defer limiter.stop()

	handler := limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func userFixture() core.User {
	return core.User{ID: "U1", DisplayName: "Mei", Language: "zh-TW", Timezone: "Asia/Taipei", WaterTarget: 1000}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef", time.Hour)

	token, err := issuer.Issue(userFixture())
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.Subject)
	assert.Equal(t, "Mei", claims.DisplayName)
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef", time.Hour)
	issuer.now = func() time.Time { return testNow }

	token, err := issuer.Issue(userFixture())
	require.NoError(t, err)

	issuer.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestTokenIssuerRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef", time.Hour)
	other := NewTokenIssuer("fedcba9876543210", time.Hour)

	token, err := issuer.Issue(userFixture())
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse token"))
}
