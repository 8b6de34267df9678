package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/address"
	"github.com/ariefcatur/beras-storefront/internal/auth"
	"github.com/ariefcatur/beras-storefront/internal/checkout"
	"github.com/ariefcatur/beras-storefront/internal/config"
	"github.com/ariefcatur/beras-storefront/internal/httpx"
	"github.com/ariefcatur/beras-storefront/internal/logx"
	"github.com/ariefcatur/beras-storefront/internal/metrics"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/reconcile"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logx.Setup(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, cache/idempotency fast-path degraded")
	}
	cache := redisx.Cache{RDB: rdb}

	// Payment gateways
	if cfg.Xendit.CallbackToken == "" {
		log.Warn().Msg("XENDIT_CALLBACK_TOKEN not set, xendit webhooks are NOT authenticated")
	}
	if cfg.BaseURL == "" {
		log.Warn().Msg("APP_BASE_URL not set, redirect URLs fall back to request Host")
	}
	gws := []payment.Gateway{&payment.Xendit{
		SecretKey:     cfg.Xendit.SecretKey,
		CallbackToken: cfg.Xendit.CallbackToken,
		BaseURL:       cfg.Xendit.BaseURL,
		InvoiceTTL:    cfg.Xendit.InvoiceTTL,
	}}
	if cfg.Doku.ClientID != "" && cfg.Doku.SecretKey != "" {
		gws = append(gws, &payment.Doku{
			ClientID:   cfg.Doku.ClientID,
			SecretKey:  cfg.Doku.SecretKey,
			BaseURL:    cfg.Doku.BaseURL,
			DueMinutes: cfg.Doku.DueMinutes,
		})
	} else {
		log.Warn().Msg("DOKU_CLIENT_ID/DOKU_SECRET_KEY not set, doku payment method disabled")
	}
	gateways := payment.NewRegistry(gws...)

	// Repo & service
	m := metrics.NewServerMetrics("api", nil)
	orderRepo := &orders.Repo{DB: db}
	addrRepo := &address.Repo{DB: db}
	srv := &httpx.Server{
		Tokens: &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL},
		Users:  &auth.Users{DB: db},
		Checkout: &checkout.Service{
			DB:              db,
			Orders:          orderRepo,
			Addresses:       addrRepo,
			IsPaymentMethod: gateways.Has,
			Producer:        cfg.ServiceName,
		},
		Orders:    orderRepo,
		Products:  orderRepo,
		Addresses: addrRepo,
		Payments: &payment.Service{
			DB:       db,
			Orders:   orderRepo,
			Gateways: gateways,
			Cache:    cache,
			Producer: cfg.ServiceName,
			Observe:  m.ObservePayment,
		},
		Gateways: gateways,
		Reconciler: &reconcile.Service{
			DB:       db,
			Orders:   orderRepo,
			Cache:    cache,
			Producer: cfg.ServiceName,
		},
		Cache:        cache,
		Metrics:      m,
		BaseURL:      cfg.BaseURL,
		SecureCookie: strings.HasPrefix(cfg.BaseURL, "https://"),
	}
	router := httpx.NewRouter(m)
	srv.Register(router)

	// HTTP server
	hs := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Strs("payment_methods", gateways.Names()).Msg("HTTP listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// wait signal
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := hs.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
