package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"waterlog/internal/amqp"
	"waterlog/internal/backend"
	"waterlog/internal/bot"
	"waterlog/internal/config"
	apphttp "waterlog/internal/http"
	"waterlog/internal/ledger"
	"waterlog/internal/line"
	applog "waterlog/internal/log"
	"waterlog/internal/projector"
)

func main() {
	// Local development convenience; absent in containers.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	st, err := backend.Open(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	})
	if err != nil {
		logger.Error("Failed to open data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer st.Close()

	// Event publishing is optional: without AMQP the bot still records,
	// the reminder worker just has nothing to consume.
	var events ledger.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	lineClient := line.NewClient(line.Config{
		ChannelAccessToken: cfg.LineChannelAccessToken,
		ChannelSecret:      cfg.LineChannelSecret,
		ChannelID:          cfg.LineChannelID,
		LoginRedirectURI:   cfg.LineLoginRedirectURI,
	})

	led := ledger.New(st, events)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		ChannelSecret:     cfg.LineChannelSecret,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Bot:               bot.NewHandler(st, led, lineClient),
		Ledger:            led,
		Projector:         projector.New(st),
		Hub:               projector.NewHub(st),
		Users:             st,
		Login:             lineClient,
		Auth:              apphttp.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 120 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting waterlog server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
