package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"access_portal/portal/schema"

	"github.com/go-chi/chi/v5"
)

func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dest)
	if err != nil {
		slog.Error("error parsing request body", "error", err)
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("error parsing request body: %v", err))
		return false
	}
	return true
}

func writeJson(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	writeJson(w, http.StatusOK, data)
}

func WriteJsonCreated(w http.ResponseWriter, data interface{}) {
	writeJson(w, http.StatusCreated, data)
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, errorResponse{Error: message})
}

func WriteValidationError(w http.ResponseWriter, details map[string]string) {
	writeJson(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
}

// WriteDomainError picks the response status from the error chain: absent rows
// map to 404, rejected state transitions and stale decisions to 409, anything
// else to 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, schema.ErrInvalidTransition),
		errors.Is(err, schema.ErrAlreadyRevoked),
		errors.Is(err, schema.ErrAlreadyDecided):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func IdUrlParam(r *http.Request, name string) (uint, error) {
	value := chi.URLParam(r, name)
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value '%v' for url parameter '%v'", value, name)
	}
	return uint(id), nil
}
