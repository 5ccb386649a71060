// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/notify"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

const devJWTSecret = "dev-only-secret"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the event store ──────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Booking notifications ─────────────────────────────────────────
	var notifier service.Notifier = notify.NewLog(log)
	if cfg.NATSURL != "" {
		nc, err := notify.NewNATS(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Close()
		notifier = nc
		log.Info().Str("subject", cfg.NATSSubject).Msg("publishing booking notices to NATS")
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
		secret = devJWTSecret
	}
	eventSvc := service.NewEventService(store, notifier, clock.NewSystem(), log)
	eventHandler := handler.NewEventHandler(eventSvc, log)
	router := handler.NewRouter(eventHandler, auth.New(secret), cfg.CORSOrigins, log)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.EventStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		log.Info().Str("host", cfg.Postgres.Host).Msg("connected to PostgreSQL")
		return repository.NewEventRepository(pool), pool.Close, nil

	case config.StoreMongo:
		client, db, err := database.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		closeClient := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}
		store := repository.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		log.Info().Str("db", cfg.MongoDB).Msg("connected to MongoDB")
		return store, closeClient, nil

	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}
}
