package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queensgods/readergate/internal/gwmetrics"
	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/store"
)

const (
	accessCookieName   = "qg_access_token"
	accessCookieMaxAge = 7 * 24 * 60 * 60 // one week, matching the reader session lifetime

	loginPath    = "/login.html"
	purchasePath = "/purchase.html"
)

// TokenResolver resolves an access token to the account email it belongs to.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (string, error)
}

// PurchaseReader looks up the recorded purchase for an email.
type PurchaseReader interface {
	Get(ctx context.Context, email string) (*store.Purchase, error)
}

// RequirePurchase returns middleware that only lets requests through when the
// caller presents an access token resolving to an account with a completed
// purchase. Anonymous and invalid-token requests are redirected to the login
// page with the original URL preserved; authenticated accounts without a
// purchase are redirected to the purchase page.
func RequirePurchase(resolver TokenResolver, purchases PurchaseReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil || purchases == nil {
				gwmetrics.AccessDecisionsTotal.WithLabelValues("unconfigured").Inc()
				log.Error().Msg("access gate is missing its identity or purchase backend")
				http.Error(w, "Reader is temporarily unavailable.", http.StatusInternalServerError)
				return
			}

			cookie, err := r.Cookie(accessCookieName)
			if err != nil || strings.TrimSpace(cookie.Value) == "" {
				gwmetrics.AccessDecisionsTotal.WithLabelValues("no_token").Inc()
				redirectToLogin(w, r)
				return
			}

			email, err := resolver.ResolveToken(r.Context(), cookie.Value)
			if err != nil || strings.TrimSpace(email) == "" {
				// Expired, revoked, and garbage tokens all land here. Only log
				// the unexpected failures (identity API outages etc.).
				if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
					log.Warn().Err(err).Msg("access token resolution failed")
				}
				gwmetrics.AccessDecisionsTotal.WithLabelValues("invalid_token").Inc()
				redirectToLogin(w, r)
				return
			}

			record, err := purchases.Get(r.Context(), store.NormalizeEmail(email))
			if err != nil {
				gwmetrics.AccessDecisionsTotal.WithLabelValues("store_error").Inc()
				log.Error().Err(err).Msg("purchase lookup failed during access check")
				http.Error(w, "Could not validate purchase status.", http.StatusInternalServerError)
				return
			}
			if !record.Completed() {
				gwmetrics.AccessDecisionsTotal.WithLabelValues("not_purchased").Inc()
				http.Redirect(w, r, purchasePath, http.StatusFound)
				return
			}

			gwmetrics.AccessDecisionsTotal.WithLabelValues("granted").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	q := url.Values{"returnTo": {r.URL.RequestURI()}}
	http.Redirect(w, r, loginPath+"?"+q.Encode(), http.StatusFound)
}

// requestIsSecure reports whether the request arrived over HTTPS, directly or
// via a TLS-terminating proxy.
func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func setAccessCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   accessCookieMaxAge,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAccessCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}
