package main

import (
	"context"
	"github.com/ariefcatur/go-marketplace-checkout/internal/config"
	"github.com/ariefcatur/go-marketplace-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-marketplace-checkout/internal/kafka"
	"github.com/ariefcatur/go-marketplace-checkout/internal/notifications"
	"github.com/ariefcatur/go-marketplace-checkout/internal/postgres"
	"github.com/ariefcatur/go-marketplace-checkout/internal/redisx"
	"github.com/ariefcatur/go-marketplace-checkout/internal/telemetry"
	"github.com/joho/godotenv"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := telemetry.Setup(ctx, cfg.OTelEnabled, cfg.ServiceName+"-notifier", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &notifications.Service{
		Store: &notifications.PGStore{DB: db},
		Dedup: redisx.NewDedup(rdb, "notifier"),
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.OrderEventsTopic, cfg.NotifierWorkers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", cfg.NotifierGroup, cfg.OrderEventsTopic, cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// HTTP: POST /notify dipanggil api lewat circuit breaker
	router := httpx.NewRouter()
	nh := &httpx.NotifierHandler{Service: svc}
	nh.Register(router)
	srv := &http.Server{Addr: cfg.NotifierHTTPAddr, Handler: router}
	go func() {
		log.Printf("HTTP listening at %s", cfg.NotifierHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down notifier...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	wg.Wait()
	if err := shutdownOTel(ctx2); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
