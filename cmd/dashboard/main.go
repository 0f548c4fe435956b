package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/backend"
	"github.com/example/market-dashboard/internal/cache"
	"github.com/example/market-dashboard/internal/config"
	"github.com/example/market-dashboard/internal/trading"
	"github.com/example/market-dashboard/internal/views"
	"github.com/example/market-dashboard/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// The backend speaks plain decimal numbers in USD.
	decimal.MarshalJSONWithoutQuotes = true

	client := backend.New(cfg.BackendURL, cfg.HTTPTimeout, logger)

	store := cache.NewStore()
	quotes, err := cache.NewQuotes(cfg.QuoteTTL)
	if err != nil {
		logger.Fatal("quote cache", zap.Error(err))
	}
	defer quotes.Close()

	reg := views.New(store, cfg.PollInterval, logger)
	defer reg.Close()

	hub := web.NewHub()
	reg.Subscribe(hub.BroadcastView)

	// The dashboard holds one reference to each of its views for the life
	// of the process.
	userID := cfg.UserID
	reg.Register(cache.Stocks(), func(ctx context.Context) (any, error) {
		return client.ListStocks(ctx)
	})
	reg.Register(cache.Portfolio(userID), func(ctx context.Context) (any, error) {
		return client.GetPortfolio(ctx, userID)
	})
	reg.Register(cache.Summary(userID), func(ctx context.Context) (any, error) {
		return client.GetSummary(ctx, userID)
	})
	reg.Register(cache.Trades(userID), func(ctx context.Context) (any, error) {
		return client.ListTrades(ctx, userID)
	})

	flow := trading.New(client, reg, quotes, logger)

	s := web.NewServer(reg, flow, hub, logger, userID, cfg.CORSOrigin)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: s.R}
	go func() {
		logger.Info("dashboard listening",
			zap.String("port", cfg.Port),
			zap.String("backend", cfg.BackendURL),
			zap.String("user_id", userID),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http", zap.Error(err))
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = server.Shutdown(ctxShut)
	logger.Info("shutdown complete")
}
