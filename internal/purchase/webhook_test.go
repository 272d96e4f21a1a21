package purchase

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, secret, payload string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func completionEvent(sessionID string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","payment_status":"unpaid"}}}`, sessionID)
}

func newWebhookHandler(writer *fakeWriter, get func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)) *WebhookHandler {
	return NewWebhookHandler(testWebhookSecret, newTestVerifier(writer, get))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	handler := newWebhookHandler(newFakeWriter(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")

	rec := serve(handler, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body=%q)", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	handler := newWebhookHandler(newFakeWriter(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader([]byte(`{}`)))
	rec := serve(handler, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhookRequiresConfiguredSecret(t *testing.T) {
	handler := NewWebhookHandler("", newTestVerifier(newFakeWriter(), nil))

	req := signedWebhookRequest(t, testWebhookSecret, `{}`)
	rec := serve(handler, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	fetched := false
	handler := newWebhookHandler(newFakeWriter(), func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		fetched = true
		return nil, nil
	})

	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`
	rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if fetched {
		t.Error("session fetched for an unhandled event type")
	}
}

func TestWebhookRecordsCompletedSession(t *testing.T) {
	writer := newFakeWriter()
	handler := newWebhookHandler(writer, func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return paidSession(id, "Buyer@Example.com"), nil
	})

	rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, completionEvent("cs_hook_1")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%q)", rec.Code, http.StatusOK, rec.Body.String())
	}

	record, ok := writer.records["buyer@example.com"]
	if !ok {
		t.Fatal("no purchase recorded")
	}
	if record.stripeSessionID != "cs_hook_1" {
		t.Errorf("stripe_session_id = %q, want %q", record.stripeSessionID, "cs_hook_1")
	}
}

func TestWebhookDeliveryIsIdempotent(t *testing.T) {
	writer := newFakeWriter()
	handler := newWebhookHandler(writer, func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return paidSession(id, "buyer@example.com"), nil
	})

	for i := 0; i < 2; i++ {
		rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, completionEvent("cs_hook_1")))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	if len(writer.records) != 1 {
		t.Fatalf("records = %d, want 1", len(writer.records))
	}
}

func TestWebhookAcknowledgesBusinessRejections(t *testing.T) {
	unpaid := sessionWithPrices(testPriceID)
	unpaid.ID = "cs_unpaid"
	unpaid.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	wrongProduct := paidSession("cs_wrong", "buyer@example.com")
	wrongProduct.LineItems = &stripe.LineItemList{Data: []*stripe.LineItem{{Price: &stripe.Price{ID: "price_other"}}}}

	noEmail := paidSession("cs_noemail", "")
	noEmail.CustomerDetails = nil

	sessions := map[string]*stripe.CheckoutSession{
		"cs_unpaid":  unpaid,
		"cs_wrong":   wrongProduct,
		"cs_noemail": noEmail,
	}

	writer := newFakeWriter()
	handler := newWebhookHandler(writer, func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return sessions[id], nil
	})

	for id := range sessions {
		rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, completionEvent(id)))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d (rejections must be acknowledged)", id, rec.Code, http.StatusOK)
		}
	}
	if writer.calls != 0 {
		t.Errorf("store written %d times, want 0", writer.calls)
	}
}

func TestWebhookAcknowledgesLookupFailure(t *testing.T) {
	handler := newWebhookHandler(newFakeWriter(), func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe is down")
	})

	rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, completionEvent("cs_hook_1")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (transient lookup failures are not this handler's to retry)", rec.Code, http.StatusOK)
	}
}

func TestWebhookSurfacesStoreFailure(t *testing.T) {
	writer := newFakeWriter()
	writer.err = errors.New("disk full")
	handler := newWebhookHandler(writer, func(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return paidSession(id, "buyer@example.com"), nil
	})

	rec := serve(handler, signedWebhookRequest(t, testWebhookSecret, completionEvent("cs_hook_1")))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	handler := newWebhookHandler(newFakeWriter(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stripe/webhook", nil)
	rec := serve(handler, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
