// Command exchange runs the matching engine and settlement HTTP API
// described by SPEC_FULL.md §3-§7.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"exchsim/internal/auth"
	"exchsim/internal/config"
	"exchsim/internal/httpapi"
	"exchsim/internal/matching"
	"exchsim/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configPath := flag.String("config", "configs/exchange.yaml", "path to exchange config file")
	flag.Parse()

	cfg, err := config.LoadExchange(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	driver := store.SQLite
	if cfg.Store.Driver == "postgres" {
		driver = store.Postgres
	}
	st, err := store.Open(driver, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}()

	authCache, err := auth.NewCache(st, []byte(cfg.Auth.Pepper))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth cache")
	}

	engine, err := matching.New(ctx, st)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start matching engine")
	}

	server := httpapi.NewServer(engine, st, authCache, cfg.Auth.AdminToken)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server.Handler(cfg.HTTP.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("exchange listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if err := engine.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping matching engine")
	}
	log.Info().Msg("exchange stopped")
}
