package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"briefing_agent/internal/api"
	"briefing_agent/internal/config"
	"briefing_agent/internal/dedup"
	"briefing_agent/internal/llm"
	"briefing_agent/internal/mail"
	"briefing_agent/internal/pipeline"
	"briefing_agent/internal/quota"
	"briefing_agent/internal/schedule"
	"briefing_agent/internal/search"
	"briefing_agent/internal/storage"
	"briefing_agent/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Error("open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var provider search.Provider
	switch cfg.SearchProvider {
	case config.ProviderTavily:
		provider = search.NewTavily(httpClient, cfg.TavilyAPIKey)
	case config.ProviderGoogleNews:
		provider = search.NewGoogleNews(httpClient)
	}

	var sender mail.Sender
	if cfg.SMTPEnabled() {
		sender = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail)
	} else {
		log.Warn("SMTP not configured, briefings are logged instead of emailed")
		sender = mail.NewLogSender(log)
	}

	runner := pipeline.NewRunner(
		schedule.New(time.Duration(cfg.ToleranceMinutes)*time.Minute),
		quota.New(store, quota.Caps{
			ScheduledDaily:   cfg.QuotaScheduledDaily,
			InteractiveDaily: cfg.QuotaInteractiveDaily,
			MonthlyTotal:     cfg.QuotaMonthlyTotal,
		}, log),
		dedup.New(store, log),
		provider,
		llm.NewGroq(httpClient, cfg.GroqAPIKey, cfg.GroqModel),
		sender,
		store,
		cfg.MaxResultsPerQuery,
		log,
	)

	cronTrigger := trigger.NewCron(store, runner, log)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(api.NewHandler(store, runner, log)),
	}

	log.Info("starting agent", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "search", cfg.SearchProvider)

	go func() {
		if err := cronTrigger.Run(ctx); err != nil {
			log.Error("scheduled trigger", "error", err)
			cancel()
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown http server", "error", err)
	}

	log.Info("agent stopped")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return storage.NewRedis(ctx, cfg.RedisAddr)
	default:
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		return storage.NewSQLite(cfg.DatabasePath)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
