package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kisansathi/gateway/internal/ai"
	"github.com/kisansathi/gateway/internal/api"
	"github.com/kisansathi/gateway/internal/app"
	"github.com/kisansathi/gateway/internal/app/maintenance"
	"github.com/kisansathi/gateway/internal/assetcache"
	"github.com/kisansathi/gateway/internal/database"
	"github.com/kisansathi/gateway/internal/notifications"
	"github.com/kisansathi/gateway/internal/store"
	"github.com/kisansathi/gateway/pkg/logger"
)

const (
	shutdownTimeout = 15 * time.Second
	installTimeout  = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("kisansathi-gateway", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := database.OpenAndMigrate(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db, log)

	storeOpts := []store.Option{}
	if cfg.Remote.SyncEndpoint != "" {
		sender, err := store.NewHTTPSender(cfg.Remote.SyncEndpoint)
		if err != nil {
			return fmt.Errorf("initialise sync sender: %w", err)
		}
		storeOpts = append(storeOpts, store.WithSender(sender))
	}
	dataStore, err := store.NewWithDB(db, storeOpts...)
	if err != nil {
		return fmt.Errorf("initialise store: %w", err)
	}

	storage := assetcache.NewStorage()
	manager, err := assetcache.NewManager(assetcache.Config{
		Origin:      cfg.AssetCache.Origin,
		Generation:  cfg.AssetCache.Generation,
		Resources:   cfg.AssetCache.Resources,
		OfflinePath: cfg.AssetCache.OfflinePath,
	}, storage)
	if err != nil {
		return fmt.Errorf("initialise asset cache: %w", err)
	}

	installCtx, cancelInstall := context.WithTimeout(ctx, installTimeout)
	if err := manager.Install(installCtx); err != nil {
		// Serve proxied traffic until the next generation installs cleanly.
		log.Warn("asset cache install failed; starting without cached shell", zap.Error(err))
	} else if err := manager.Activate(installCtx); err != nil {
		log.Warn("asset cache activation failed", zap.Error(err))
	}
	cancelInstall()

	registry := assetcache.NewRegistry()
	manager.RegisterSyncHandlers(registry, cfg.Remote.CropAnalysisEndpoint, cfg.Remote.WeatherEndpoint, dataStore)

	var aiClient *ai.Client
	if cfg.AI.APIKey != "" {
		aiClient, err = ai.NewClient(ai.Config{
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			APIKey:  cfg.AI.APIKey,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			return fmt.Errorf("initialise ai client: %w", err)
		}
	} else {
		log.Warn("ai api key not configured; advisory endpoint disabled")
	}

	hub := notifications.NewHub()

	cleaner := maintenance.NewCleaner(dataStore,
		maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		maintenance.WithSyncedSchedule(cfg.Maintenance.SyncedSchedule),
		maintenance.WithSyncedRetention(cfg.Maintenance.SyncedRetention),
	)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Store:    dataStore,
		Manager:  manager,
		Registry: registry,
		AIClient: aiClient,
		Hub:      hub,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to access database handle during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
