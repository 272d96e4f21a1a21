package purchase

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
)

// Verifier resolves a buyer-supplied checkout session id to a verified,
// recorded entitlement. The session is always re-fetched from Stripe with
// line-item price expansion; nothing the browser sends is trusted beyond the
// opaque id.
type Verifier struct {
	recorder           *Recorder
	getCheckoutSession func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewVerifier creates a checkout-completion verifier backed by the Stripe API.
func NewVerifier(recorder *Recorder) *Verifier {
	return &Verifier{
		recorder:           recorder,
		getCheckoutSession: stripesession.Get,
	}
}

// Verify retrieves the checkout session and runs the entitlement recorder,
// returning the normalized buyer email on success.
func (v *Verifier) Verify(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrMissingSessionID
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price")

	session, err := v.getCheckoutSession(sessionID, params)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("checkout session lookup failed")
		return "", ErrInvalidSession
	}
	return v.recorder.Record(ctx, session)
}
