package purchase

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/queensgods/readergate/internal/gwmetrics"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82/webhook"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// WebhookHandler handles incoming Stripe webhook events. Business-rule
// rejections (unpaid session, wrong product, missing email) are acknowledged
// with 200 so Stripe does not retry deliveries that can never succeed; only a
// store failure is surfaced as a server error, since that is the one condition
// worth a retry.
type WebhookHandler struct {
	secret   string
	verifier *Verifier
}

type webhookErrorResponse struct {
	Error string `json:"error"`
}

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// checkoutSessionEvent is the minimal slice of a checkout.session event this
// handler reads. The embedded object is never treated as authoritative for
// payment status or line items; only the id is used, and the full session is
// re-fetched from Stripe.
type checkoutSessionEvent struct {
	ID string `json:"id"`
}

// NewWebhookHandler creates a Stripe webhook HTTP handler.
func NewWebhookHandler(secret string, verifier *Verifier) *WebhookHandler {
	return &WebhookHandler{
		secret:   secret,
		verifier: verifier,
	}
}

// ServeHTTP verifies the Stripe signature and processes completion events.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		gwmetrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		gwmetrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, webhookErrorResponse{Error: "method not allowed"})
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		status = http.StatusServiceUnavailable
		writeJSON(w, status, webhookErrorResponse{Error: "webhook secret not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, webhookErrorResponse{Error: "failed to read request body"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		status = http.StatusBadRequest
		writeJSON(w, status, webhookErrorResponse{Error: "missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, webhookErrorResponse{Error: "invalid Stripe signature"})
		return
	}
	eventType = string(event.Type)

	if event.Type != "checkout.session.completed" {
		log.Info().
			Str("type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("Stripe webhook ignored (unhandled type)")
		writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
		return
	}

	var session checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil || strings.TrimSpace(session.ID) == "" {
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Msg("Stripe completion event without a usable session id")
		writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
		return
	}

	email, err := h.verifier.Verify(r.Context(), session.ID)
	switch {
	case err == nil:
		gwmetrics.VerificationsTotal.WithLabelValues("webhook", "recorded").Inc()
		log.Info().
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Str("email", email).
			Msg("purchase recorded from webhook")
	case errors.Is(err, ErrStoreUnavailable):
		gwmetrics.VerificationsTotal.WithLabelValues("webhook", "store_error").Inc()
		log.Error().Err(err).
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Msg("Stripe webhook processing failed")
		status = http.StatusInternalServerError
		writeJSON(w, status, webhookErrorResponse{Error: "processing failed"})
		return
	default:
		// Unpaid, wrong product, missing email, or the session could not be
		// re-fetched: legitimate no-ops from Stripe's point of view. An error
		// here would only trigger pointless retries.
		gwmetrics.VerificationsTotal.WithLabelValues("webhook", "skipped").Inc()
		log.Info().Err(err).
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Msg("Stripe completion event not recorded")
	}

	writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("purchase: encode webhook response")
	}
}
