package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/obot-platform/shopinstall/internal/config"
	"github.com/obot-platform/shopinstall/internal/database"
	"github.com/obot-platform/shopinstall/internal/handler"
	"github.com/obot-platform/shopinstall/internal/logger"
	"github.com/obot-platform/shopinstall/internal/metrics"
	"github.com/obot-platform/shopinstall/internal/nonce"
	"github.com/obot-platform/shopinstall/internal/service"
	"github.com/obot-platform/shopinstall/internal/shopify"
	"github.com/obot-platform/shopinstall/internal/store"
	"github.com/obot-platform/shopinstall/internal/version"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logr.Close() }()

	// Background work stops when ctx is cancelled on shutdown.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	states, closeStates, err := newStateStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("Failed to initialize state store", "store", cfg.StateStore, "error", err)
	}
	defer closeStates()
	logr.Info("State store initialized", "store", cfg.StateStore, "ttl", cfg.StateTTL)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	client := shopify.New(shopify.Config{
		ClientID:     cfg.APIKey,
		ClientSecret: cfg.APISecret,
		Scopes:       cfg.Scopes,
		RedirectURL:  cfg.CallbackURL(),
		APIVersion:   cfg.APIVersion,
		ShopSuffix:   cfg.ShopSuffix,
		Timeout:      cfg.UpstreamTimeout,
		Logger:       logr,
	})

	install := service.NewInstallService(states, client, service.InstallOptions{
		APISecret:   cfg.APISecret,
		SanityCheck: cfg.SanityCheck,
	}, m, logr)

	h := handler.New(cfg, install, states, m, logr)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logr.Info("Server starting", "port", cfg.Port, "version", version.Get(), "callback", cfg.CallbackURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("Shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("Server forced to shutdown", "error", err)
	}

	logr.Info("Server stopped")
}

// newStateStore builds the configured state store. The returned func
// releases its resources.
func newStateStore(ctx context.Context, cfg *config.Config, logr *logger.Logger) (nonce.Store, func(), error) {
	switch cfg.StateStore {
	case config.StateStoreDatabase:
		db, err := database.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logr.Info("Database ready", "driver", db.Driver)
		states := nonce.NewDatabaseStore(store.New(db.DB), cfg.StateTTL)
		go states.RunPurge(ctx, cfg.StateTTL, logr)
		return states, func() { _ = db.Close() }, nil

	case config.StateStoreRedis:
		states, err := nonce.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.StateTTL)
		if err != nil {
			return nil, nil, err
		}
		return states, func() { _ = states.Close() }, nil

	case config.StateStoreCookie:
		return nonce.NewCookieStore(cfg.StateTTL, cfg.CookieSecure), func() {}, nil

	case config.StateStoreMemory:
		return nonce.NewMemoryStore(cfg.StateTTL), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported state store: %s", cfg.StateStore)
}
