package httpresponse

import (
	"encoding/json"
	"net/http"

	"hooker/internal/httpcontract"

	"github.com/charmbracelet/log"
)

// WriteJSON sends a JSON response with status 200.
func WriteJSON(w http.ResponseWriter, data any) {
	WriteJSONStatus(w, http.StatusOK, data)
}

// WriteJSONStatus sends a JSON response with a custom status code.
func WriteJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteError sends a JSON error response.
func WriteError(w http.ResponseWriter, message string, status int) {
	WriteJSONStatus(w, status, httpcontract.ErrorResponse{Error: message})
}
