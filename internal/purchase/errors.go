package purchase

import "errors"

// Rejection reasons for entitlement verification. Handlers map these onto
// HTTP responses; the webhook handler additionally swallows the business-rule
// rejections so Stripe does not retry deliveries that will never succeed.
var (
	// ErrMissingSessionID indicates the caller supplied no checkout session id.
	ErrMissingSessionID = errors.New("missing session_id")
	// ErrInvalidSession indicates the session could not be retrieved from Stripe.
	ErrInvalidSession = errors.New("invalid checkout session")
	// ErrNotPaid indicates the session exists but payment has not completed.
	ErrNotPaid = errors.New("payment not completed")
	// ErrProductMismatch indicates the session is for a different product/price.
	ErrProductMismatch = errors.New("session does not include the expected product")
	// ErrMissingEmail indicates the paid session carries no buyer email.
	ErrMissingEmail = errors.New("checkout session does not include an email")
	// ErrStoreUnavailable indicates the purchase record could not be persisted.
	ErrStoreUnavailable = errors.New("could not persist purchase")
)

// IsRejection reports whether err is one of the business-rule rejections that
// represent a legitimate (if unwanted) state of the checkout session, as
// opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotPaid) ||
		errors.Is(err, ErrProductMismatch) ||
		errors.Is(err, ErrMissingEmail)
}
