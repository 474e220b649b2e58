package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// handleLiveWeek streams the current week summary over a websocket. The
// client gets a snapshot on connect and a fresh one after every write
// to the user's ledger.
func (s *Server) handleLiveWeek(w http.ResponseWriter, r *http.Request) {
	id := userID(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "Websocket upgrade failed", "error", err, "user_id", id)
		return
	}
	defer conn.Close()

	updates, cancel, err := s.hub.Subscribe(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Live subscription failed", "error", err, "user_id", id)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		return
	}
	defer cancel()

	// Reader goroutine notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeWeekSnapshot(conn, id, r); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeWeekSnapshot(conn, id, r); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeWeekSnapshot(conn *websocket.Conn, id string, r *http.Request) error {
	days, err := s.projector.WeekSummary(r.Context(), id, s.now(), false)
	if err != nil {
		slog.ErrorContext(r.Context(), "Live snapshot failed", "error", err, "user_id", id)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(newSummaryResponse(days))
}
