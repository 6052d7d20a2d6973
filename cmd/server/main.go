// Package main runs the order lifecycle and ledger HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"broker-ledger/config"
	"broker-ledger/engine"
	"broker-ledger/idgen"
	"broker-ledger/internal/api"
	"broker-ledger/observability"
	"broker-ledger/repository"
	"broker-ledger/services"
)

func main() {
	// Load environment variables
	envLoaded := godotenv.Load() == nil

	observability.InitLogger(os.Getenv("ENV") == "production")
	observability.InitMetrics()
	if !envLoaded {
		observability.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()

	// Pick the ledger store. Without DATABASE_URL the engine runs on the
	// in-memory store, which loses state on restart.
	var store repository.Store
	if cfg.HasDatabase() {
		pg, err := repository.NewPostgres(ctx, cfg.Database.URL, cfg.Ledger.Currency)
		if err != nil {
			observability.Fatal("failed to connect to database", "error", err)
		}
		defer pg.Close()
		store = pg
		observability.Info("connected to database")
	} else {
		store = repository.NewMemory(cfg.Ledger.Currency)
		observability.Warn("DATABASE_URL not set, using in-memory store")
	}

	// Quote provider for market orders. Without an upstream, market orders
	// are rejected and only limit orders can be placed.
	var quotes services.QuoteProvider
	if cfg.HasMarketData() {
		quotes = services.NewMarketDataServiceWithTimeout(
			cfg.MarketData.BaseURL,
			time.Duration(cfg.MarketData.TimeoutSeconds)*time.Second)
		observability.Info("market data service configured", "base_url", cfg.MarketData.BaseURL)
	} else {
		quotes = services.NewStaticQuoteProvider()
		observability.Warn("MARKET_DATA_BASE_URL not set, market orders will not price")
	}

	fees := services.NewConfigFeeProvider(cfg.FeeSchedule())

	ids, err := idgen.New(cfg.Ledger.NodeID)
	if err != nil {
		observability.Fatal("failed to initialize order number generator", "error", err)
	}

	svc := engine.New(store, fees, quotes, ids, nil)
	svc.Events().Subscribe(func(e engine.Event) {
		observability.Info("order event",
			"event_id", e.ID.String(),
			"type", string(e.Type),
			"order_number", e.Order.OrderNumber,
			"state", string(e.Order.State))
	})

	handler := api.NewHandler(svc, store, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting server", "addr", cfg.HTTP.Addr, "currency", cfg.Ledger.Currency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	observability.Info("server stopped")
}
