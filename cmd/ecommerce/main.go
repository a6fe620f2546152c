package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkov/shopcore/internal/auth"
	"github.com/avolkov/shopcore/internal/config"
	"github.com/avolkov/shopcore/internal/server"
	"github.com/avolkov/shopcore/internal/service"
	"github.com/avolkov/shopcore/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := config.NewConfig()
	store, err := storage.NewPostgreStorage(ctx, config.DatabaseURI)
	if err != nil {
		config.Logger.Fatal(err)
	}

	orders := service.NewOrderService(store)
	wallets := service.NewWalletService(store)
	catalog := service.NewCatalogService(store)
	reviews := service.NewReviewService(store)
	analytics := service.NewAnalyticsService(store)
	tokens := auth.NewTokenManager(config.SecretKey)

	srv := server.NewServer(store, orders, wallets, catalog, reviews, analytics, config, tokens)
	if err := srv.Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
}
