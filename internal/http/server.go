// Package http exposes the webhook endpoint and the JSON API the
// tracking site consumes.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"waterlog/internal/bot"
	"waterlog/internal/cache"
	"waterlog/internal/ledger"
	"waterlog/internal/line"
	"waterlog/internal/projector"
	"waterlog/internal/store"
)

// LoginExchanger trades a login authorization code for the profile
// behind it.
type LoginExchanger interface {
	ExchangeLogin(ctx context.Context, code, redirectURI string) (*line.Profile, error)
}

// Options carries the collaborators the server routes to.
type Options struct {
	Addr              string
	ChannelSecret     string
	RequestsPerMinute int

	Bot       *bot.Handler
	Ledger    *ledger.Ledger
	Projector *projector.Projector
	Hub       *projector.Hub
	Users     store.UserStore
	Login     LoginExchanger
	Auth      *TokenIssuer
}

type Server struct {
	http.Server

	bot       *bot.Handler
	ledger    *ledger.Ledger
	projector *projector.Projector
	hub       *projector.Hub
	users     store.UserStore
	login     LoginExchanger
	auth      *TokenIssuer

	channelSecret string
	validate      *validator.Validate
	limiter       *rateLimiter
	upgrader      websocket.Upgrader
	now           func() time.Time

	// Closed months never change, so their summaries cache well.
	monthCache *cache.LRU[summaryResponse]

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	s := &Server{
		bot:           opts.Bot,
		ledger:        opts.Ledger,
		projector:     opts.Projector,
		hub:           opts.Hub,
		users:         opts.Users,
		login:         opts.Login,
		auth:          opts.Auth,
		channelSecret: opts.ChannelSecret,
		validate:      validator.New(),
		limiter:       newRateLimiter(opts.RequestsPerMinute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The tracking site is a separate origin from the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:        time.Now,
		monthCache: cache.NewLRU[summaryResponse](256, 24*time.Hour),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(securityHeaders)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Post("/webhook", s.handleWebhook)
	r.Post("/api/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Authenticate)
		r.Use(s.limiter.middleware)

		r.Get("/api/status", s.handleStatus)
		r.Post("/api/intake", s.handleIntake)
		r.Put("/api/target", s.handleTarget)
		r.Put("/api/language", s.handleLanguage)
		r.Get("/api/summary/week", s.handleWeekSummary)
		r.Get("/api/summary/month", s.handleMonthSummary)
		r.Get("/api/live/week", s.handleLiveWeek)
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Shutdown stops the listener and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "Request handled",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", r.RemoteAddr)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
