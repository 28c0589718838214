package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"peerprep/interview/internal/models"
)

// --- Response Helpers ---
func JSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func WriteJSON(w http.ResponseWriter, code int, resp models.Resp) {
	JSON(w, code, resp)
}

func WriteOK(w http.ResponseWriter, info any) {
	WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: info})
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, models.Resp{OK: false, Info: message})
}

// --- Identity ---
const UserIDHeader = "X-User-ID"

// CurrentUserID extracts the caller's identity. The header wins over the
// userId query parameter, which wins over the legacy uid parameter.
func CurrentUserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return id
	}
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("userId")); id != "" {
		return id
	}
	return strings.TrimSpace(q.Get("uid"))
}
