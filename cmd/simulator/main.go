package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jmanzanog/market-sim/internal/application"
	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/config"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata/alpaca"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata/finnhub"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata/twelvedata"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata/yfinance"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/memory"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/sqldb"
	httpHandler "github.com/jmanzanog/market-sim/internal/interfaces/http"
)

// setupLogger configures and returns a structured logger with source information
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     lvl,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

// initializeDatabase opens the configured database and runs migrations.
// The memory driver needs neither.
func initializeDatabase(cfg *config.Config) (domain.Repository, error) {
	if cfg.DBDriver == config.DBDriverMemory {
		slog.Warn("Using in-memory storage, state is lost on exit")
		return memory.NewRepository(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	return sqldb.NewRepository(db), nil
}

// buildServer creates and configures the HTTP server with all routes and handlers
func buildServer(cfg *config.Config, service httpHandler.SimulationService) *http.Server {
	router := gin.Default()
	handler := httpHandler.NewHandler(service)
	httpHandler.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// createPriceFeed creates the market data client selected by configuration
func createPriceFeed(cfg *config.Config) domain.PriceFeed {
	switch cfg.MarketDataProvider {
	case config.MarketDataProviderTwelveData:
		return twelvedata.NewClient(cfg.TwelveDataAPIKey)
	case config.MarketDataProviderAlpaca:
		return alpaca.NewClient(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)
	case config.MarketDataProviderFinnhub:
		return finnhub.NewClient(cfg.FinnhubAPIKey)
	default:
		return yfinance.NewClientWithBaseURL(cfg.YFinanceBaseURL)
	}
}

// newRandSource returns a seeded PCG source when a seed is configured
func newRandSource(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewPCG(*seed, *seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// App wraps the application components for easier testing
type App struct {
	Server        *http.Server
	Scheduler     *application.Scheduler
	CancelContext context.CancelFunc
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application...")

	a.Scheduler.Stop()
	a.CancelContext()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	return nil
}

// run contains the main application logic without os.Exit calls
func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.LogLevel)

	feed := createPriceFeed(cfg)
	slog.Info("Using market data provider", "provider", cfg.MarketDataProvider)

	repo, err := initializeDatabase(cfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := application.NewSimulationService(ctx, repo, feed, newRandSource(cfg.SimulationSeed), cfg.SimulationVolatility)
	if err != nil {
		return fmt.Errorf("failed to create simulation service: %w", err)
	}

	scheduler, err := application.NewScheduler(service, cfg.SimulationSchedule, cfg.PriceRefreshSchedule)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start(ctx)

	server := buildServer(cfg, service)

	app := &App{
		Server:        server,
		Scheduler:     scheduler,
		CancelContext: cancel,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "host", cfg.ServerHost, "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// Wait for termination signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		scheduler.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("Server exited gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
