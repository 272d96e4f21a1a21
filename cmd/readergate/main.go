package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/queensgods/readergate/internal/gateway"
	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/logging"
	"github.com/queensgods/readergate/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "readergate",
		Short:         "Purchase-gated access service for the Queen's Gods digital reader",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gateway.Run(cmd.Context(), Version)
		},
	}
	root.AddCommand(newVersionCmd(), newSeedCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the readergate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision a test reader account with a completed purchase",
		Long: `Creates (or reuses) an account in the identity backend and records a
completed purchase for it, so the gated reader can be exercised without
going through Stripe Checkout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(logging.Config{Format: "console", Level: "info", Component: "seed"})

			if email == "" {
				email = envOr("TEST_ADMIN_EMAIL", "admin.test@queensgods.local")
			}
			if password == "" {
				password = envOr("TEST_ADMIN_PASSWORD", "AdminTest#2026")
			}
			email = store.NormalizeEmail(email)
			if len(password) < 8 {
				return errors.New("seed password must be at least 8 characters")
			}

			cfg, err := gateway.LoadConfig()
			if err != nil {
				return err
			}

			purchases, err := store.Open(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("open purchase store: %w", err)
			}
			defer purchases.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			idp := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
			switch err := idp.CreateUser(ctx, email, password); {
			case err == nil:
				log.Info().Str("email", email).Msg("test account created")
			case errors.Is(err, identity.ErrUserExists):
				log.Info().Str("email", email).Msg("test account already exists")
			default:
				return fmt.Errorf("create test account: %w", err)
			}

			if err := purchases.UpsertCompleted(ctx, email, "seed_test_admin", time.Now()); err != nil {
				return fmt.Errorf("record test purchase: %w", err)
			}
			log.Info().Str("email", email).Msg("completed purchase recorded")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "test account email (default $TEST_ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "test account password (default $TEST_ADMIN_PASSWORD)")
	return cmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
