package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/logging"
	"github.com/queensgods/readergate/internal/purchase"
	"github.com/queensgods/readergate/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Run starts the reader gateway and blocks until the context is cancelled or
// a termination signal arrives.
func Run(ctx context.Context, version string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "readergate",
	})
	log.Info().Str("version", version).Msg("starting reader gateway")

	purchases, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open purchase store: %w", err)
	}
	defer func() {
		if err := purchases.Close(); err != nil {
			log.Warn().Err(err).Msg("closing purchase store")
		}
	}()

	stripe.Key = cfg.StripeSecretKey

	deps := &Deps{
		Config:    cfg,
		Purchases: purchases,
		Identity:  identity.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey),
		Verifier:  purchase.NewVerifier(purchase.NewRecorder(purchases, cfg.StripePriceID)),
		Version:   version,
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler:           SecurityHeaders(mux),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
