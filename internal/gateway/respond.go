package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coursewright/coursewright/internal/domain"
	"github.com/coursewright/coursewright/internal/generate"
	"github.com/coursewright/coursewright/internal/session"
)

// ErrorShape is the wire format for API errors.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorShape `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: ErrorShape{Code: code, Message: message}})
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		valErr     *domain.ValidationError
		notFound   *session.NotFoundError
		expired    *session.ExpiredSessionError
		persist    *session.PersistenceError
		generation *generate.GenerationError
	)

	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, "validation_error", valErr.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &expired):
		writeError(w, http.StatusGone, "session_expired", expired.Error())
	case errors.As(err, &persist):
		writeError(w, http.StatusBadGateway, "persistence_error", persist.Error())
	case errors.As(err, &generation):
		writeError(w, http.StatusBadGateway, "generation_error", generation.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decodeBody parses a JSON request body into target. An empty body
// leaves the target at its zero value.
func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
