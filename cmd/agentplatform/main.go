// Command agentplatform runs the trading-bot scheduler described by
// SPEC_FULL.md §8-§11: strategy DSL, rule engine, and per-agent
// tick loops that submit orders against a running exchange.
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

	"exchsim/internal/agent"
	"exchsim/internal/agenthttp"
	"exchsim/internal/config"
	"exchsim/internal/strategy/builtin"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configPath := flag.String("config", "configs/agentplatform.yaml", "path to agent platform config file")
	flag.Parse()

	cfg, err := config.LoadAgentPlatform(*configPath)
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

	manager := agent.NewManager()
	strategies := builtin.NewRegistry()
	server := agenthttp.NewServer(manager, strategies, cfg.Exchange.BaseURL, cfg.Exchange.Timeout)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server.Handler(cfg.HTTP.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("agent platform listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining agent ticks")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if err := manager.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping agent manager")
	}
	log.Info().Msg("agent platform stopped")
}
