package gateway

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/queensgods/readergate/internal/store"
)

const (
	orderNameMinLength    = 2
	orderNameMaxLength    = 120
	orderEmailMaxLength   = 254
	orderAddressMinLength = 8
	orderAddressMaxLength = 500
	orderCopiesMax        = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type orderResponse struct {
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

// HandleOrderRequest accepts print-edition order requests submitted from the
// order form. Orders are fulfilled manually, so the handler only validates,
// assigns a reference, and records the request in the logs.
func HandleOrderRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeOrderError(w, r, "Invalid form submission.")
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	email := store.NormalizeEmail(r.PostFormValue("email"))
	address := strings.TrimSpace(r.PostFormValue("address"))
	copiesRaw := strings.TrimSpace(r.PostFormValue("copies"))

	if len(name) < orderNameMinLength || len(name) > orderNameMaxLength {
		writeOrderError(w, r, "Please provide your full name.")
		return
	}
	if email == "" || len(email) > orderEmailMaxLength || !emailPattern.MatchString(email) {
		writeOrderError(w, r, "Please provide a valid email address.")
		return
	}
	if len(address) < orderAddressMinLength || len(address) > orderAddressMaxLength {
		writeOrderError(w, r, "Please provide a full shipping address.")
		return
	}
	copies, err := strconv.Atoi(copiesRaw)
	if err != nil || copies < 1 || copies > orderCopiesMax {
		writeOrderError(w, r, fmt.Sprintf("Copies must be a number between 1 and %d.", orderCopiesMax))
		return
	}

	reference := uuid.NewString()
	log.Info().
		Str("reference", reference).
		Str("name", name).
		Str("email", email).
		Str("address", address).
		Int("copies", copies).
		Msg("print order request received")

	message := "Thank you! Your order request has been received. We will email you with payment and shipping details."
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, orderResponse{Message: message, Reference: reference})
		return
	}
	writeOrderPage(w, http.StatusOK, "Order request received", message+" Reference: "+reference)
}

func writeOrderError(w http.ResponseWriter, r *http.Request, message string) {
	if wantsJSON(r) {
		writeMessage(w, http.StatusBadRequest, message)
		return
	}
	writeOrderPage(w, http.StatusBadRequest, "Order request problem", message)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeOrderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head><body><h1>%s</h1><p>%s</p><p><a href="/order.html">Back to the order form</a></p></body></html>`,
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}
