package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"playground/internal/api"
	"playground/internal/api/handlers"
	"playground/internal/api/middleware"
	"playground/internal/api/web"
	"playground/internal/engine/nimbus"
	"playground/internal/engine/playground"
	"playground/internal/engine/signing"
	"playground/internal/platform/config"
	"playground/internal/platform/metrics"
	"playground/internal/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "configs/config.yaml", "path to the config file")
	flags.String("host", "", "listen host (overrides server.host)")
	flags.Int("port", 0, "listen port (overrides server.port)")
	flags.String("backend", "", "Nimbus API base URL (overrides backend.base_url)")
	flags.Parse(os.Args[1:])

	v := config.New()
	if err := config.ReadFile(v, *configPath); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to read config")
	}
	if err := config.BindFlags(v, flags, map[string]string{
		"host":    "server.host",
		"port":    "server.port",
		"backend": "backend.base_url",
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to bind flags")
	}

	cfg, err := config.Decode(v)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	registry := metrics.NewRegistry()
	client, err := nimbus.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		nimbus.WithUserAgent(cfg.Backend.UserAgent),
		nimbus.WithObserver(registry),
		nimbus.WithSigner(signing.NewSigner()),
	)
	if err != nil {
		log.Fatal().Err(err).Str("base_url", cfg.Backend.BaseURL).Msg("invalid backend URL")
	}

	store := playground.NewStore(client, playground.Settings{
		ProjectID:      cfg.Backend.ProjectID,
		ListLimit:      cfg.Backend.ListLimit,
		SampleEmail:    cfg.Playground.SampleEmail,
		SamplePassword: cfg.Playground.SamplePassword,
		ToastDuration:  cfg.Playground.ToastDuration,
		DefaultAPIKey:  playground.APIKeyForm{ID: cfg.HMAC.KeyID, Secret: cfg.HMAC.Secret},
	}, cfg.Playground.SessionTTL)

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse templates")
	}

	sessions := middleware.NewSessionMiddleware(store, cfg.Playground.CookieName, false)
	rateLimiter := middleware.NewRateLimiter(cfg.Playground.ActionsPerMinute, sessions)

	deps := &api.Dependencies{
		PlaygroundHandler: handlers.NewPlaygroundHandler(renderer, client.BaseURL(), cfg.Playground.ToastDuration),
		HealthHandler:     handlers.NewHealthHandler(client, store.Len),
		MetricsHandler:    handlers.NewMetricsHandler(registry, store.Len),
		SessionMiddleware: sessions,
		RateLimiter:       rateLimiter,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go store.Run(ctx, time.Minute)
	go rateLimiter.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("backend", client.BaseURL()).
			Str("project_id", cfg.Backend.ProjectID).
			Msg("playground starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
