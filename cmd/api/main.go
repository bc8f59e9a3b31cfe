package main

import (
	"context"
	"github.com/ariefcatur/go-marketplace-checkout/internal/breaker"
	"github.com/ariefcatur/go-marketplace-checkout/internal/config"
	"github.com/ariefcatur/go-marketplace-checkout/internal/exams"
	"github.com/ariefcatur/go-marketplace-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-marketplace-checkout/internal/kafka"
	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/notify"
	"github.com/ariefcatur/go-marketplace-checkout/internal/postgres"
	"github.com/ariefcatur/go-marketplace-checkout/internal/redisx"
	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
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

	shutdownOTel, err := telemetry.Setup(ctx, cfg.OTelEnabled, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	var (
		store marketplace.Store
		repo  exams.Repo
		cache marketplace.Cache
		wg    sync.WaitGroup
	)
	switch cfg.StoreDriver {
	case "memory":
		// tanpa redis & kafka: event order_completed tetap tersimpan di outbox memori
		log.Println("store driver: memory (no cache, no event relay)")
		store = marketplace.NewMemStore()
		repo = exams.NewMemRepo()
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		store = &marketplace.PGStore{DB: db}
		repo = &exams.PGRepo{DB: db}

		// Redis
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		cache = redisx.NewCache(rdb)

		// Kafka producer, diisi dari outbox
		prod := kafkax.NewProducer(cfg.KafkaBrokers)
		defer prod.Close()
		relay := marketplace.NewOutboxRelay(store, prod, cfg.OutboxInterval, cfg.OutboxBatch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	default:
		log.Fatalf("unknown STORE_DRIVER %q (postgres|memory)", cfg.StoreDriver)
	}

	// Notification client behind the breaker
	br := breaker.New("notification-service",
		breaker.WithFailureThreshold(cfg.BreakerFailureThreshold),
		breaker.WithResetTimeout(cfg.BreakerResetTimeout),
		breaker.WithCallTimeout(cfg.NotifyTimeout),
		breaker.WithStateChangeHook(func(name string, from, to breaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		}),
	)
	notifier := notify.NewGuarded(notify.NewClient(cfg.NotificationURL, cfg.NotifyTimeout), br)

	// Services & handlers
	checkout := marketplace.NewCheckoutService(store, saga.NewRunner(nil), cache,
		marketplace.WithCheckoutTimeout(cfg.CheckoutTimeout),
		marketplace.WithProducerName(cfg.ServiceName),
		marketplace.WithEventsTopic(cfg.OrderEventsTopic),
	)
	router := httpx.NewRouter()
	mh := &httpx.MarketplaceHandler{
		Checkout: checkout,
		Catalog:  marketplace.NewCatalog(store, cache),
	}
	mh.Register(router)
	eh := &httpx.ExamsHandler{
		Service: exams.NewService(repo, notifier),
		Breaker: br,
	}
	eh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()  // stop outbox relay
	wg.Wait() // tunggu flush terakhir selesai sebelum producer ditutup
	if err := shutdownOTel(ctx2); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
