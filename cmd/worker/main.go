package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/config"
	"github.com/ariefcatur/beras-storefront/internal/inventory"
	kafkax "github.com/ariefcatur/beras-storefront/internal/kafka"
	"github.com/ariefcatur/beras-storefront/internal/logx"
	"github.com/ariefcatur/beras-storefront/internal/metrics"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/reconcile"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// worker: outbox relay + sweeper order expired + consumer restock, satu proses.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logx.Setup(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName+"-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.Cache{RDB: rdb}

	// Producer dipakai relay; topic dibawa tiap baris outbox
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("producer close")
		}
	}()

	m := metrics.NewServerMetrics("worker", nil)
	orderRepo := &orders.Repo{DB: db}

	relay := &outbox.Relay{
		Store:     &outbox.Repo{DB: db},
		Publisher: prod,
		Interval:  cfg.OutboxInterval,
	}
	sweeper := &reconcile.Sweeper{
		DB:        db,
		Orders:    orderRepo,
		Cache:     cache,
		Producer:  cfg.ServiceName + "-worker",
		Interval:  cfg.SweepInterval,
		UnpaidTTL: cfg.UnpaidOrderTTL,
		OnCancel:  m.AddSwept,
	}
	restock := &inventory.Service{
		Orders:    orderRepo,
		Cache:     cache,
		OnRestock: m.IncRestocked,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderStatus, cfg.Workers)

	// metrics endpoint worker
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	ms := &http.Server{Addr: cfg.WorkerMetrics, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Dur("interval", cfg.OutboxInterval).Msg("outbox relay started")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Dur("interval", cfg.SweepInterval).Dur("unpaid_ttl", cfg.UnpaidOrderTTL).Msg("sweeper started")
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("group", cfg.WorkerGroup).Str("topic", orders.TopicOrderStatus).Int("workers", cfg.Workers).Msg("restock consumer started")
		return cons.Start(gctx, restock.HandleStatusChanged)
	})
	g.Go(func() error {
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ms.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker exit")
	}
}
