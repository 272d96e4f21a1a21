package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/purchase"
	"github.com/queensgods/readergate/internal/store"
)

// Deps carries the dependencies the HTTP routes need.
type Deps struct {
	Config    *Config
	Purchases *store.PurchaseStore
	Identity  *identity.Client
	Verifier  *purchase.Verifier
	Version   string
}

// RegisterRoutes registers all gateway routes on the mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	mux.HandleFunc("/healthz", HandleHealthz)
	mux.HandleFunc("/readyz", HandleReadyz(deps.Purchases))
	if deps.Config.PublicMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	// Stripe retries on failure, so the webhook gets a generous limit that
	// only cuts off runaway delivery loops.
	webhookLimiter := NewRateLimiter(120, time.Minute)
	mux.Handle("/api/stripe/webhook", webhookLimiter.Middleware(
		purchase.NewWebhookHandler(deps.Config.StripeWebhookSecret, deps.Verifier)))

	accounts := NewAccountHandlers(deps.Verifier, deps.Identity)
	authLimiter := NewRateLimiter(10, time.Minute)
	mux.HandleFunc("/api/verify-session", accounts.HandleVerifySession)
	mux.Handle("/api/create-account", authLimiter.Middleware(http.HandlerFunc(accounts.HandleCreateAccount)))
	mux.Handle("/api/login", authLimiter.Middleware(http.HandlerFunc(accounts.HandleLogin)))
	mux.HandleFunc("/api/logout", accounts.HandleLogout)

	checkout := NewCheckoutHandlers(deps.Config)
	mux.HandleFunc("/api/checkout-session", checkout.HandleCreateCheckoutSession)
	mux.HandleFunc("/api/order-request", HandleOrderRequest)

	if dir := strings.TrimSpace(deps.Config.PublicDir); dir != "" {
		files := http.FileServer(http.Dir(dir))

		// Interface conversions from nil pointers would dodge the gate's nil
		// checks, so only hand over backends that actually exist.
		var resolver TokenResolver
		if deps.Identity != nil {
			resolver = deps.Identity
		}
		var purchases PurchaseReader
		if deps.Purchases != nil {
			purchases = deps.Purchases
		}
		gate := RequirePurchase(resolver, purchases)

		mux.Handle("/reader/", gate(files))
		mux.Handle("/", files)
	}
}
