package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_pricing/internal/adapters/http_server"
	kafkaad "hotel_pricing/internal/adapters/kafka"
	"hotel_pricing/internal/adapters/observability"
	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/app"
	"hotel_pricing/internal/pricing"
	"hotel_pricing/internal/shared"
	"hotel_pricing/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	catalog, err := shared.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("load catalog failed")
	}
	log.Info().Int("hotels", len(catalog.Hotels)).Str("file", cfg.CatalogFile).Msg("catalog loaded")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	repo, closeRepo, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database setup failed")
	}
	defer closeRepo()

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, previews will not be cached")
	}

	svc := app.NewRecommendationService(catalog.Hotels, pricing.NewEngine(catalog.Rules, nil), repo, cache, cfg.CacheTTL)
	if len(cfg.KafkaBrokers) > 0 {
		pub := kafkaad.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		svc.WithPublisher(pub)
	}

	// http
	srv := server.New(60 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{R: svc, HorizonDays: cfg.HorizonDays})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
