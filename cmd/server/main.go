/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Bulldogs Market transaction core server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load config file (flags override)
  3. Initialize SQLite store
  4. Wire the domain core and API handler
  5. Start the weekly reset scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file path (optional, YAML)
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: market.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reset scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/market.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with a config file
  ./server -config=market.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Weekly reset scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bulldogs/market-core/api"
	"github.com/bulldogs/market-core/config"
	"github.com/bulldogs/market-core/market"
	"github.com/bulldogs/market-core/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "config file path (YAML)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.String("path", *configPath), zap.Error(err))
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("db", cfg.DBPath), zap.Error(err))
	}
	defer store.Close()

	// Wire the core
	core := market.NewCore(store, log, market.Options{
		Quota:         cfg.WeeklyQuota,
		RetryAttempts: cfg.RetryAttempts,
	})

	handler := api.NewHandler(core, log)
	handler.LowStockThreshold = cfg.LowStockThreshold

	// Weekly reset runs in the background
	scheduler := api.NewResetScheduler(core, log)
	scheduler.CheckInterval = cfg.ResetInterval
	scheduler.Start()

	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.Int("weekly_quota", cfg.WeeklyQuota))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
