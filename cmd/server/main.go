package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/xreply/internal/api"
	"github.com/iconidentify/xreply/internal/api/handler"
	"github.com/iconidentify/xreply/internal/browser"
	"github.com/iconidentify/xreply/internal/cache"
	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/extract"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/scheduler"
	"github.com/iconidentify/xreply/internal/service"
	"github.com/iconidentify/xreply/internal/worker"
	"github.com/iconidentify/xreply/pkg/license"
	"github.com/iconidentify/xreply/pkg/shadow"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xreply %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting xreply",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Storage
	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	configRepo := repository.NewKVConfigRepository(store)
	historyRepo := repository.NewKVHistoryRepository(store, repository.HistoryLimit)
	licenseCache := repository.NewKVLicenseCacheRepository(store, cfg.License.CacheTTL, time.Now)

	replyCache, err := cache.New(cfg.Cache.Size, !cfg.Cache.DisableCoalescing, logger)
	if err != nil {
		logger.Error("failed to create reply cache", "error", err)
		os.Exit(1)
	}

	// Remote clients
	licenseClient := license.NewClient(cfg.Remote)
	shadowClient := shadow.NewClient(cfg.Remote)

	// Initialize services
	eventSvc := service.NewEventService(service.DefaultEventBufferSize, logger)
	relaySvc := service.NewRelayService(configRepo, licenseClient, shadowClient, logger)
	replySvc := service.NewReplyService(
		newExtractor(cfg.Extract, logger),
		relaySvc,
		replyCache,
		configRepo,
		historyRepo,
		logger,
	)
	replySvc.SetEventEmitter(eventSvc)
	licenseSvc := service.NewLicenseService(configRepo, licenseCache, licenseClient, logger)
	licenseSvc.SetEventEmitter(eventSvc)
	settingsSvc := service.NewSettingsService(configRepo, logger)

	// Background tasks
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	go licenseSvc.WatchKeyChanges(bgCtx, store)

	sched := scheduler.New(cfg.License.Location(), logger)
	if cfg.License.RefreshSchedule != "" {
		if err := sched.AddJob("license-refresh", cfg.License.RefreshSchedule, licenseSvc.Refresh); err != nil {
			logger.Error("failed to schedule license refresh", "error", err)
			os.Exit(1)
		}
	}
	sched.Start()

	// Initialize handlers
	replyHandler := handler.NewReplyHandler(replySvc, relaySvc, logger)
	var composers handler.ComposerLister

	// Attached browser (optional)
	var (
		session *browser.Session
		watcher *worker.Watcher
	)
	if cfg.Browser.Enabled {
		session, err = browser.Open(bgCtx, browser.Config{
			RemoteURL:  cfg.Browser.RemoteURL,
			Visible:    cfg.Browser.Visible,
			ProfileDir: cfg.Browser.ProfileDir,
			PageURL:    cfg.Browser.PageURL,
		}, logger)
		if err != nil {
			logger.Error("failed to attach browser", "error", err)
			os.Exit(1)
		}
		replySvc.AttachInserter(session)
		replyHandler.AttachPage(session)
		composers = session

		watcher = worker.NewWatcher(worker.Config{PollInterval: cfg.Browser.PollInterval}, session, logger)
		watcher.SetEventEmitter(eventSvc)
		watcher.Start()
	}

	router := api.NewRouter(
		replyHandler,
		handler.NewSettingsHandler(settingsSvc, logger),
		handler.NewLicenseHandler(licenseSvc, logger),
		handler.NewEventHandler(eventSvc, logger),
		handler.NewComposerHandler(composers, logger),
		handler.NewHealthHandler(configRepo),
		cfg.Server.APIKey,
		cfg.Server.CORSOrigins,
	)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if watcher != nil {
		if err := watcher.Stop(5 * time.Second); err != nil {
			logger.Error("composer watcher shutdown error", "error", err)
		}
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Error("scheduler shutdown timed out")
	}

	cancelBackground()
	if session != nil {
		session.Close()
	}

	logger.Info("shutdown complete")
}

// openStore opens the SQLite store, or an in-memory one when no path is set.
func openStore(cfg config.StorageConfig, logger *slog.Logger) (kvstore.Store, error) {
	if cfg.Path == "" {
		logger.Warn("no storage path configured, settings will not persist")
		return kvstore.NewMemoryStore(logger), nil
	}
	store, err := kvstore.NewSQLiteStore(cfg.Path, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("settings store opened", "path", cfg.Path)
	return store, nil
}

// newExtractor builds the tweet extractor from the extract config section.
func newExtractor(cfg config.ExtractConfig, logger *slog.Logger) *extract.Extractor {
	return extract.New(
		extract.WithLogger(logger),
		extract.WithMinImageSize(cfg.MinImageSize),
		extract.WithShortLinkRedaction(cfg.RedactShortLinks),
	)
}
