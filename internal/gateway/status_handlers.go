package gateway

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

// HandleHealthz reports process liveness.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// HandleReadyz reports readiness: the process is only ready when the purchase
// store answers.
func HandleReadyz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "no store"})
			return
		}
		if err := db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
	}
}
