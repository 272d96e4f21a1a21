package gateway

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/purchase"
	"github.com/queensgods/readergate/internal/store"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()

	purchases, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = purchases.Close() })

	publicDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<h1>Queen's Gods</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(publicDir, "reader"), 0o755); err != nil {
		t.Fatalf("mkdir reader: %v", err)
	}
	if err := os.WriteFile(filepath.Join(publicDir, "reader", "index.html"), []byte("<h1>Chapter 1</h1>"), 0o644); err != nil {
		t.Fatalf("write reader index: %v", err)
	}

	return &Deps{
		Config: &Config{
			PublicDir:           publicDir,
			StripeWebhookSecret: "whsec_test",
			StripePriceID:       "price_123",
		},
		Purchases: purchases,
		Identity:  identity.NewClient("http://127.0.0.1:9", "service-role-key"),
		Verifier:  purchase.NewVerifier(purchase.NewRecorder(purchases, "price_123")),
		Version:   "test",
	}
}

func newTestMux(t *testing.T, deps *Deps) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return mux
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRoutesHealthEndpoints(t *testing.T) {
	mux := newTestMux(t, newTestDeps(t))

	if rec := get(mux, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := get(mux, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRoutesMetricsGatedByConfig(t *testing.T) {
	deps := newTestDeps(t)
	mux := newTestMux(t, deps)
	if rec := get(mux, "/metrics"); rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("/metrics exposed without RG_PUBLIC_METRICS")
	}

	deps2 := newTestDeps(t)
	deps2.Config.PublicMetrics = true
	mux2 := newTestMux(t, deps2)
	if rec := get(mux2, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want %d when enabled", rec.Code, http.StatusOK)
	}
}

func TestRoutesServePublicSite(t *testing.T) {
	mux := newTestMux(t, newTestDeps(t))

	rec := get(mux, "/index.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("/index.html status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Queen's Gods") {
		t.Errorf("body = %q, want landing page", rec.Body.String())
	}
}

func TestRoutesGateReaderPaths(t *testing.T) {
	mux := newTestMux(t, newTestDeps(t))

	rec := get(mux, "/reader/")
	if rec.Code != http.StatusFound {
		t.Fatalf("/reader/ status = %d, want %d", rec.Code, http.StatusFound)
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), loginPath) {
		t.Errorf("Location = %q, want login redirect", rec.Header().Get("Location"))
	}
}

func TestRoutesWebhookRegistered(t *testing.T) {
	mux := newTestMux(t, newTestDeps(t))

	rec := get(mux, "/api/stripe/webhook")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET webhook status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
