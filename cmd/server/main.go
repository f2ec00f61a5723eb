package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/logging"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/server"
)

func main() {
	cfg := config.GetCached()
	log := logging.New(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(ctx, database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		Debug:       cfg.Debug,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close database")
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	if err := permissions.Bootstrap(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("permission catalog is invalid")
	}

	// No WriteTimeout: WebSocket connections manage their own deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(server.Deps{Config: cfg, DB: db, Log: log}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to shutdown server")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("timetrack API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server encountered error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
