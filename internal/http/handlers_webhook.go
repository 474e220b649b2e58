package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"waterlog/internal/line"
)

// handleWebhook verifies the platform signature, then feeds each event
// to the bot. The platform retries on non-2xx, so per-event failures
// are logged but still answered with 200 once the body is verified.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !line.ValidateSignature(body, signature, s.channelSecret) {
		slog.WarnContext(r.Context(), "Webhook signature rejected", "client_ip", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	req, err := line.ParseWebhookRequest(body)
	if err != nil {
		if errors.Is(err, line.ErrNoEvents) {
			// Verification ping from the platform console.
			w.WriteHeader(http.StatusOK)
			return
		}
		respondError(w, http.StatusBadRequest, "malformed webhook body")
		return
	}

	for _, ev := range req.Events {
		if err := s.bot.HandleEvent(r.Context(), ev); err != nil {
			slog.ErrorContext(r.Context(), "Webhook event failed",
				"error", err,
				"event_type", ev.Type,
				"user_id", ev.Source.UserID)
		}
	}
	w.WriteHeader(http.StatusOK)
}
