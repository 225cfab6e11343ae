package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

const (
	maxJSONBody = 1 << 20
	maxHTMLBody = 8 << 20
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps err to its HTTP status. Server side failures are
// logged; everything else is the caller's problem and only returned.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", "error", err)
	}
	writeError(w, status, service.UserMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
