package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dancharlton9/gambling-blocklist/packages/config"
	"github.com/dancharlton9/gambling-blocklist/packages/crawler"
	"github.com/dancharlton9/gambling-blocklist/packages/db"
	"github.com/dancharlton9/gambling-blocklist/packages/metrics"
	"github.com/dancharlton9/gambling-blocklist/packages/output"
	"github.com/dancharlton9/gambling-blocklist/packages/registry"
	"github.com/dancharlton9/gambling-blocklist/packages/resolver"
	"github.com/dancharlton9/gambling-blocklist/packages/worker"
)

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logDir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
			"Failed to create log directory", "path", logDir, "error", err,
		)
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logRotator)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "blocklist-scraper")})

	slog.SetDefault(slog.New(handler))
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting blocklist scraper ---",
		"sources", len(cfg.Aggregators),
		"parallel_sources", cfg.MaxParallelSources,
		"permissive", cfg.Permissive,
	)

	if cfg.MetricsAddr != "" {
		go metrics.ExposeMetrics(cfg.MetricsAddr)
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("Run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	browser := crawler.New(crawler.Options{
		FetchTimeout:      cfg.FetchTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		UserAgent:         cfg.UserAgent,
		AcceptLanguage:    cfg.AcceptLanguage,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		MaxRedirects:      cfg.MaxRedirects,
	}, crawler.NewPoliteness(cfg.PoliteDelay, cfg.PoliteJitter))

	res := resolver.New(cfg.ResolverConfig(), cfg.Rules(), browser)
	appWorker := worker.New(cfg, browser, res)

	reg, _, err := appWorker.Run(ctx)
	if err != nil {
		return err
	}

	updated := time.Now().UTC()
	if _, err := output.WriteAll(cfg.OutputDir, reg.Domains(), updated, cfg.RepoURL); err != nil {
		return fmt.Errorf("write blocklists: %w", err)
	}

	var errs []error
	if cfg.DatabaseURL != "" {
		if err := publish(ctx, cfg.DatabaseURL, reg, updated); err != nil {
			errs = append(errs, fmt.Errorf("publish snapshot: %w", err))
		}
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

func publish(ctx context.Context, databaseURL string, reg *registry.Registry, updated time.Time) error {
	storage, err := db.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := storage.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err = storage.PublishSnapshot(ctx, reg.Snapshot(), updated)
	return err
}
