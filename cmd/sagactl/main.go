package main

import (
	"context"
	"log"
	"os"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/postgres"
	"github.com/ariefcatur/go-marketplace-checkout/internal/sagactl"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	open := func(ctx context.Context, dsn string) (marketplace.Store, func(), error) {
		db, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return &marketplace.PGStore{DB: db}, db.Close, nil
	}

	if err := sagactl.NewRootCommand(open, os.Getenv("POSTGRES_DSN")).Execute(); err != nil {
		log.Printf("sagactl: %v", err)
		os.Exit(1)
	}
}
