package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"waterlog/internal/backend"
	"waterlog/internal/config"
	"waterlog/internal/export"
	exportgoogle "waterlog/internal/export/google"
	applog "waterlog/internal/log"
	"waterlog/internal/projector"
)

func main() {
	_ = godotenv.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentExport
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	var (
		userID = flag.String("user", "", "user id to export")
		year   = flag.Int("year", time.Now().Year(), "year to export")
		month  = flag.Int("month", int(time.Now().Month()), "month to export (1-12)")
	)
	flag.Parse()

	if *userID == "" {
		logger.Error("Flag -user is required")
		os.Exit(2)
	}
	if *month < 1 || *month > 12 {
		logger.Error("Flag -month must be between 1 and 12", "month", *month)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateExport(); err != nil {
		logger.Error("Export configuration validation failed", "error", err)
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

	ctx := context.Background()

	writer, err := exportgoogle.New(ctx, exportgoogle.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
		ClientFile:    cfg.GoogleOAuthClientFile,
		TokenFile:     cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	exporter := export.NewExporter(st, projector.New(st), writer)
	ref, err := exporter.ExportMonth(ctx, *userID, *year, time.Month(*month), time.Now())
	if err != nil {
		logger.Error("Export failed", "error", err, "user_id", *userID)
		os.Exit(1)
	}

	logger.Info("Export complete", "user_id", *userID, "year", *year, "month", *month, "ref", ref)
}
