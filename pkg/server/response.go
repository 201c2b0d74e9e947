package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/strrl/telescope-dashboard/pkg/querier"
)

// messageResponse is the body of every non-validation error.
type messageResponse struct {
	Message string `json:"message"`
}

// validationResponse is the 422 body.
type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeValidation(w http.ResponseWriter, verr *querier.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Message: verr.Error(),
		Errors:  verr.Errors,
	})
}
