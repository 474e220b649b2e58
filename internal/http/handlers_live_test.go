package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveWeekStream(t *testing.T) {
	e := newTestEnv(t)
	token := e.loginToken(t)

	ts := httptest.NewServer(e.server.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live/week"
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	readSnapshot := func() summaryResponse {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var snap summaryResponse
		require.NoError(t, json.Unmarshal(data, &snap))
		return snap
	}

	initial := readSnapshot()
	require.Len(t, initial.Days, 4)
	assert.False(t, initial.Days[3].HasRecord)

	_, err = e.server.ledger.RecordIntake(context.Background(), "U1", 400, testNow)
	require.NoError(t, err)

	updated := readSnapshot()
	require.Len(t, updated.Days, 4)
	assert.True(t, updated.Days[3].HasRecord)
	assert.Equal(t, int64(400), updated.Days[3].TotalDrank)
}

func TestLiveWeekRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	ts := httptest.NewServer(e.server.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live/week"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
