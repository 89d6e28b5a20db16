package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "alquiler_floripa/internal/adapters/http_server"
	"alquiler_floripa/internal/adapters/observability"
	redisad "alquiler_floripa/internal/adapters/redis"
	"alquiler_floripa/internal/adapters/remote"
	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
	"alquiler_floripa/internal/seo"
	"alquiler_floripa/internal/shared"
	"alquiler_floripa/internal/storage/memkv"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	rem, err := remote.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.RemoteDriver).Msg("remote store setup failed")
	}
	defer rem.Close()

	rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rc.Close()
	cache := redisad.NewCache(rc)

	var kv domain.KV
	switch cfg.MirrorBackend {
	case "redis":
		kv = redisad.NewKV(rc, "mirror:")
	default:
		kv = memkv.New()
	}
	mopts := []mirror.Option{mirror.WithMaxBytes(cfg.MirrorMaxBytes), mirror.WithPollInterval(cfg.MirrorPoll)}
	propsM := mirror.New[domain.Property](kv, domain.PropertySchema, mopts...)
	bannersM := mirror.New[domain.Banner](kv, domain.BannerSchema, mopts...)
	eventsM := mirror.New[domain.Event](kv, domain.EventSchema, mopts...)

	fallback := !cfg.Production()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("remote", cfg.RemoteDriver).
		Str("mirror", cfg.MirrorBackend).
		Bool("fallback", fallback).
		Msg("starting")

	// coordinators invalidate the view cache owned by the query service built after them
	var q *app.QueryService
	inv := app.InvalidateFunc(func(ctx context.Context) { q.Invalidate(ctx) })
	props := app.NewCoordinator[domain.Property](rem.Properties, propsM, fallback, inv)
	banners := app.NewCoordinator[domain.Banner](rem.Banners, bannersM, fallback, inv)
	events := app.NewCoordinator[domain.Event](rem.Events, eventsM, fallback, inv)
	barrios := app.NewNeighborhoodService(rem.Neighborhoods, inv)
	q = app.NewQueryService(props, banners, events, barrios, cache, cfg.CacheTTL)

	srv := server.New(cfg.CORSOrigins)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, SEO: seo.NewBuilder(cfg.SiteURL), Production: cfg.Production()})
	srv.MountAdmin(&server.Admin{
		Auth:       app.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, cache, cfg.SessionTTL),
		Modes:      app.NewModes(cfg.SessionTTL),
		Prober:     app.NewProber(rem.Pinger, cfg.ProbeTimeout),
		Properties: props,
		Banners:    banners,
		Events:     events,
		Barrios:    barrios,
		Images:     app.NewImageService(rem.Objects, fallback),
		Storage:    app.NewStorageService(fallback, inv, propsM, bannersM, eventsM),
		SessionTTL: cfg.SessionTTL,
		Production: cfg.Production(),

		MaxBodyBytes: bodyLimit(cfg),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func bodyLimit(cfg shared.Config) int64 {
	if cfg.AdminMaxBodyBytes > 0 {
		return int64(cfg.AdminMaxBodyBytes)
	}
	return app.AdminBodyLimit(cfg.MirrorMaxBytes)
}
