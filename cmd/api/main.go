package main

import (
	"context"
	"log"
	"net/http"

	"disputeflow/auth"
	"disputeflow/config"
	"disputeflow/db"
	"disputeflow/dispute"
	"disputeflow/registry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	var (
		store    dispute.Store
		metadata registry.MetadataClient
		authSvc  *auth.Service
	)

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()

		store = dispute.NewRepository(pool)
		metadata = registry.NewService(registry.NewRepository(pool), 0)
		authSvc = auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	} else {
		log.Print("DATABASE_URL is empty; running on the in-memory store")
		store = dispute.NewMemoryStore()
		authSvc = auth.NewService(auth.NewMemoryRepository(), cfg.JWTSecret)
	}

	engine := dispute.NewEngine(store, metadata, dispute.Config{
		ArbitrationPeriod:  cfg.ArbitrationPeriod,
		DaoVotingThreshold: cfg.DaoVotingThreshold,
	})

	server := NewServer(engine, authSvc)

	log.Printf("dispute service listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
