package gateway

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the reader gateway.
type Config struct {
	BindAddress   string
	Port          int
	DataDir       string
	PublicDir     string // static site root; served at "/" with "/reader/" gated
	BaseURL       string // optional; checkout return URLs fall back to the request origin
	PublicMetrics bool
	LogLevel      string
	LogFormat     string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string

	SupabaseURL            string
	SupabaseServiceRoleKey string
}

// LoadConfig loads gateway configuration from environment variables.
// A .env file is loaded if present but not required.
func LoadConfig() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	port, err := envOrDefaultInt("RG_PORT", 8787)
	if err != nil {
		return nil, err
	}
	publicMetrics, err := envOrDefaultBool("RG_PUBLIC_METRICS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BindAddress:   envOrDefault("RG_BIND_ADDRESS", "0.0.0.0"),
		Port:          port,
		DataDir:       envOrDefault("RG_DATA_DIR", "/data"),
		PublicDir:     envOrDefault("RG_PUBLIC_DIR", "public"),
		BaseURL:       strings.TrimSpace(os.Getenv("RG_BASE_URL")),
		PublicMetrics: publicMetrics,
		LogLevel:      envOrDefault("RG_LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("RG_LOG_FORMAT", "auto"),

		StripeSecretKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		StripePriceID:       strings.TrimSpace(os.Getenv("STRIPE_PRICE_ID")),

		SupabaseURL:            strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseServiceRoleKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate gateway config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.StripePriceID == "" {
		missing = append(missing, "STRIPE_PRICE_ID")
	}
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("RG_PORT must be between 1 and 65535, got %d", c.Port)
	}

	if c.BaseURL != "" {
		parsed, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("RG_BASE_URL must be a valid URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("RG_BASE_URL must use http or https scheme")
		}
		if parsed.Host == "" {
			return fmt.Errorf("RG_BASE_URL must include a host")
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
		}
		return b, nil
	}
	return fallback, nil
}
