package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/queensgods/readergate/internal/purchase"
)

type messageResponse struct {
	Message string `json:"message"`
}

type emailResponse struct {
	Email string `json:"email"`
}

type conflictResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeVerificationError maps verification failures onto client responses.
// Business rejections are client errors; only store trouble is the server's
// fault.
func writeVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, purchase.ErrMissingSessionID):
		writeMessage(w, http.StatusBadRequest, "Missing session_id.")
	case errors.Is(err, purchase.ErrInvalidSession):
		writeMessage(w, http.StatusBadRequest, "Invalid checkout session.")
	case errors.Is(err, purchase.ErrNotPaid):
		writeMessage(w, http.StatusBadRequest, "Payment not completed.")
	case errors.Is(err, purchase.ErrProductMismatch):
		writeMessage(w, http.StatusBadRequest, "This checkout session is not valid for this product.")
	case errors.Is(err, purchase.ErrMissingEmail):
		writeMessage(w, http.StatusBadRequest, "Checkout session does not include an email.")
	case errors.Is(err, purchase.ErrStoreUnavailable):
		writeMessage(w, http.StatusInternalServerError, "Could not verify purchase right now.")
	default:
		log.Error().Err(err).Msg("unexpected verification failure")
		writeMessage(w, http.StatusInternalServerError, "Could not verify purchase right now.")
	}
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case purchase.IsRejection(err), errors.Is(err, purchase.ErrMissingSessionID), errors.Is(err, purchase.ErrInvalidSession):
		return "rejected"
	default:
		return "error"
	}
}
