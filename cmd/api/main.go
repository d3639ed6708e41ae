package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	hydrodb "github.com/curwsl/hydrodb"
	"github.com/curwsl/hydrodb/internal/api"
	"github.com/curwsl/hydrodb/internal/config"
	"github.com/curwsl/hydrodb/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := hydrodb.NewPool(ctx, hydrodb.PoolConfig{
		DatabaseURL:      cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		AcquireTimeout:   cfg.DBAcquireTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		log.Fatalf("db connection error: %v", err)
	}

	adapter := hydrodb.NewWithPool(pool)
	defer adapter.Close()

	metrics := observability.NewMetrics()
	srv := api.New(cfg, adapter, metrics)
	log.Printf("REST API listening on %s", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
