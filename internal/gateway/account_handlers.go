package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queensgods/readergate/internal/gwmetrics"
	"github.com/queensgods/readergate/internal/identity"
	"github.com/queensgods/readergate/internal/store"
)

const minPasswordLength = 8

// SessionVerifier verifies a checkout session and records the entitlement,
// returning the buyer's normalized email.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID string) (string, error)
}

// identityProvider is the slice of the identity API the account handlers use.
type identityProvider interface {
	CreateUser(ctx context.Context, email, password string) error
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
}

// AccountHandlers serves the session verification, account creation, and
// sign-in/sign-out endpoints.
type AccountHandlers struct {
	verifier SessionVerifier
	identity identityProvider
}

// NewAccountHandlers creates the account endpoint handlers.
func NewAccountHandlers(verifier SessionVerifier, idp identityProvider) *AccountHandlers {
	return &AccountHandlers{verifier: verifier, identity: idp}
}

type verifySessionRequest struct {
	SessionID string `json:"session_id"`
}

// HandleVerifySession checks a checkout session and reports the buyer email
// the account should be created under. The entitlement is recorded as a side
// effect, so a buyer who never returns to finish signup is still covered once
// the webhook or this endpoint has seen the session.
func (h *AccountHandlers) HandleVerifySession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var req verifySessionRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)

	email, err := h.verifier.Verify(r.Context(), req.SessionID)
	gwmetrics.VerificationsTotal.WithLabelValues("verify_session", verificationResult(err)).Inc()
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emailResponse{Email: email})
}

type createAccountRequest struct {
	SessionID string `json:"session_id"`
	Password  string `json:"password"`
}

// HandleCreateAccount verifies the checkout session and provisions the reader
// account under the buyer's email.
func (h *AccountHandlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var req createAccountRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing session_id or password.")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}

	email, err := h.verifier.Verify(r.Context(), sessionID)
	gwmetrics.VerificationsTotal.WithLabelValues("create_account", verificationResult(err)).Inc()
	if err != nil {
		writeVerificationError(w, err)
		return
	}

	if err := h.identity.CreateUser(r.Context(), email, req.Password); err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			// Not a failure for the buyer: the entitlement is recorded, they
			// just need to sign in instead.
			writeJSON(w, http.StatusConflict, conflictResponse{
				Message: "An account already exists for this email.",
				Email:   email,
			})
			return
		}
		log.Error().Err(err).Msg("account creation failed")
		writeMessage(w, http.StatusInternalServerError, "Could not create account.")
		return
	}

	log.Info().Str("email", email).Msg("reader account created")
	writeJSON(w, http.StatusOK, emailResponse{Email: email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin exchanges credentials for an access token and sets it as the
// reader session cookie.
func (h *AccountHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var req loginRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)

	email := store.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing email or password.")
		return
	}

	session, err := h.identity.SignInWithPassword(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		log.Error().Err(err).Msg("sign-in failed")
		writeMessage(w, http.StatusInternalServerError, "Could not sign in right now.")
		return
	}

	setAccessCookie(w, r, session.AccessToken)
	writeJSON(w, http.StatusOK, emailResponse{Email: email})
}

// HandleLogout clears the reader session cookie.
func (h *AccountHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	clearAccessCookie(w, r)
	writeMessage(w, http.StatusOK, "Signed out.")
}
