package purchase

import (
	stripe "github.com/stripe/stripe-go/v82"
)

// SessionIncludesExpectedPrice reports whether any line item of the checkout
// session references the expected price. Stripe returns the line item price as
// a bare identifier unless the caller asked for expansion; the typed client
// decodes both representations into a Price whose ID is populated, so a single
// comparison covers both without the caller tracking which form it requested.
func SessionIncludesExpectedPrice(session *stripe.CheckoutSession, expectedPriceID string) bool {
	if expectedPriceID == "" || session == nil || session.LineItems == nil {
		return false
	}
	for _, item := range session.LineItems.Data {
		if item == nil || item.Price == nil {
			continue
		}
		if item.Price.ID == expectedPriceID {
			return true
		}
	}
	return false
}
