package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
)

// Stripe substitutes the literal placeholder into the success URL after
// payment; it must survive query encoding intact.
const checkoutSessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

const productMetadataValue = "queens-gods-digital"

// CheckoutHandlers serves checkout session creation.
type CheckoutHandlers struct {
	cfg *Config

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewCheckoutHandlers creates the checkout endpoint handlers backed by the
// Stripe API.
func NewCheckoutHandlers(cfg *Config) *CheckoutHandlers {
	return &CheckoutHandlers{
		cfg:                   cfg,
		createCheckoutSession: stripesession.New,
	}
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// HandleCreateCheckoutSession starts a Stripe Checkout session for the digital
// edition and returns the hosted payment page URL.
func (h *CheckoutHandlers) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	origin := h.origin(r)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "paypal"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(h.cfg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(buildSuccessURL(origin)),
		CancelURL:  stripe.String(origin + purchasePath),
		Metadata: map[string]string{
			"product": productMetadataValue,
		},
	}
	params.Context = r.Context()

	session, err := h.createCheckoutSession(params)
	if err != nil || session == nil || session.URL == "" {
		log.Error().Err(err).Msg("checkout session creation failed")
		writeMessage(w, http.StatusInternalServerError, "Could not create checkout session.")
		return
	}

	log.Info().Str("session_id", session.ID).Msg("checkout session created")
	writeJSON(w, http.StatusOK, checkoutResponse{URL: session.URL})
}

func (h *CheckoutHandlers) origin(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/")
	}
	scheme := "http"
	if requestIsSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func buildSuccessURL(origin string) string {
	u, err := url.Parse(origin + "/create-account.html")
	if err != nil {
		return origin + "/create-account.html?session_id=" + checkoutSessionIDPlaceholder
	}
	q := u.Query()
	q.Set("session_id", checkoutSessionIDPlaceholder)
	u.RawQuery = q.Encode()
	// Undo the query escaping of the placeholder braces.
	return strings.Replace(u.String(), url.QueryEscape(checkoutSessionIDPlaceholder), checkoutSessionIDPlaceholder, 1)
}
