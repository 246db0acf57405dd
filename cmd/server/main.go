package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/adapters/directory"
	"github.com/dkeye/Pulse/internal/adapters/gateway"
	router "github.com/dkeye/Pulse/internal/adapters/http"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Missing key material is a configuration error: fail at startup, not
	// per connection.
	verifier, err := auth.NewVerifier([]byte(cfg.AccessSecret), []byte(cfg.RefreshSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("signing keys not configured")
	}

	var dir app.Directory
	if cfg.RedisAddr != "" {
		rd, err := directory.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DirectoryTTL, cfg.DirectoryTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("identity directory setup failed")
		}
		defer func() { _ = rd.Close() }()
		dir = rd
	} else {
		log.Warn().Msg("no identity directory configured, chat payloads carry bare identities")
		dir = app.NopDirectory{}
	}

	rt := app.NewRouter(core.NewPresence(), core.NewRooms(), core.NewConns(), dir)
	rt.StreamChatMaxLen = cfg.StreamChatMaxLen
	rt.LookupTimeout = cfg.DirectoryTimeout
	gw := gateway.New(rt, verifier, cfg)

	r := router.SetupRouter(ctx, cfg, gw, rt)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Pulse gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
