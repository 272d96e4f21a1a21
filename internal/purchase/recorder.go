package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
)

// PurchaseWriter persists completed purchase records keyed by email.
type PurchaseWriter interface {
	UpsertCompleted(ctx context.Context, email, stripeSessionID string, at time.Time) error
}

// Recorder grants entitlement: it validates a checkout session against the
// expected price and upserts the purchase record. Every entry point that can
// grant access (return-URL verification, webhook confirmation, account
// provisioning) goes through Record, so the checks are enforced in one place.
type Recorder struct {
	purchases PurchaseWriter
	priceID   string
	now       func() time.Time
}

// NewRecorder creates an entitlement recorder for the expected price.
func NewRecorder(purchases PurchaseWriter, priceID string) *Recorder {
	return &Recorder{
		purchases: purchases,
		priceID:   priceID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record validates the session and persists a completed purchase record.
// Checks run in a fixed order and the first failure wins: payment status,
// price match, buyer email. On success it returns the normalized email the
// record is keyed by. Repeated calls for the same buyer converge on a single
// record, so re-verification is idempotent.
func (r *Recorder) Record(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	if session == nil {
		return "", ErrInvalidSession
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", ErrNotPaid
	}
	if !SessionIncludesExpectedPrice(session, r.priceID) {
		return "", ErrProductMismatch
	}

	email := buyerEmail(session)
	if email == "" {
		return "", ErrMissingEmail
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if err := r.purchases.UpsertCompleted(ctx, email, session.ID, r.now()); err != nil {
		log.Error().Err(err).
			Str("session_id", session.ID).
			Msg("purchase upsert failed")
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return email, nil
}

// buyerEmail extracts the buyer email, preferring the customer details block
// over the top-level customer_email field (Stripe populates either depending
// on how the session was created).
func buyerEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails != nil && strings.TrimSpace(session.CustomerDetails.Email) != "" {
		return session.CustomerDetails.Email
	}
	return session.CustomerEmail
}
