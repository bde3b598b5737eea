// Command pricewatch runs the price monitoring service: the periodic
// scrape/ledger/alert cycle plus the HTTP API for tracking products and
// looking up cross-platform comparisons.
//
// Usage:
//
//	pricewatch -config pricewatch.yaml
//	pricewatch -config pricewatch.yaml -no-browser   # static extraction only
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/api"
	"github.com/hazyhaar/pricewatch/config"
	"github.com/hazyhaar/pricewatch/extract"
	"github.com/hazyhaar/pricewatch/extract/browser"
	"github.com/hazyhaar/pricewatch/match"
	"github.com/hazyhaar/pricewatch/notify"
	"github.com/hazyhaar/pricewatch/runlog"
	"github.com/hazyhaar/pricewatch/schedule"
	"github.com/hazyhaar/pricewatch/store"
)

func main() {
	configPath := flag.String("config", "", "path to pricewatch.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	noBrowser := flag.Bool("no-browser", false, "disable Chrome rendering, use static extraction only")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *noBrowser); err != nil {
		logger.Error("pricewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, noBrowser bool) error {
	var cfg *config.Config
	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.Default()
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	extractorOpts := []extract.Option{
		extract.WithMaxAttempts(cfg.Extract.MaxAttempts),
		extract.WithBackoff(cfg.Extract.BackoffMin, cfg.Extract.BackoffMax),
		extract.WithLogger(logger),
	}

	if !noBrowser {
		mgr := browser.NewManager(browser.Config{
			RemoteURL:        cfg.Extract.Browser.Remote,
			RecycleInterval:  cfg.Extract.Browser.RecycleInterval,
			ResourceBlocking: cfg.Extract.Browser.ResourceBlocking,
			Logger:           logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer mgr.Close()
		extractorOpts = append(extractorOpts,
			extract.WithRenderer(extract.NewBrowserRenderer(mgr, cfg.Extract.NavigateTimeout)))
	} else {
		logger.Info("pricewatch: browser disabled, static extraction only")
	}

	extractor := extract.New(extractorOpts...)

	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	alerter := alerts.NewEngine(st, mailer, alerts.WithLogger(logger))

	serp := match.NewSerpClient(cfg.Search.Endpoint, cfg.Search.APIKey, cfg.Search.Timeout,
		match.WithSerpRegion(cfg.Search.Location, cfg.Search.Country, cfg.Search.Language))

	matchOpts := []match.EngineOption{
		match.WithPagePricer(match.NewPageFetcher(cfg.Search.Timeout)),
		match.WithLogger(logger),
	}
	if cfg.Keywords.Endpoint != "" {
		matchOpts = append(matchOpts, match.WithKeyworder(
			match.NewKeywordClient(cfg.Keywords.Endpoint, cfg.Keywords.APIKey, cfg.Keywords.Timeout)))
	}
	matcher := match.NewEngine(match.Config{
		FreshnessWindow: cfg.Match.FreshnessWindow,
		MaxResults:      cfg.Match.MaxResults,
		RawTarget:       cfg.Match.RawTarget,
		MinCandidates:   cfg.Match.MinCandidates,
	}, serp, st, matchOpts...)

	events, err := runlog.New(st.DB())
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}

	runner := schedule.NewRunner(schedule.Config{
		Interval:      cfg.Scheduler.Interval,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		HistoryCap:    cfg.Scheduler.HistoryCap,
	}, st, extractor, alerter,
		schedule.WithLogger(logger),
		schedule.WithRunLog(events))

	svc := api.NewService(st, extractor, matcher,
		api.WithLogger(logger),
		api.WithHistoryCap(cfg.Scheduler.HistoryCap))

	server := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pricewatch: api listening", "addr", cfg.API.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go runner.Run(ctx)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pricewatch: api shutdown", "error", err)
	}

	logger.Info("pricewatch: stopped")
	return nil
}
