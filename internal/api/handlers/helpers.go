package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/credential"
	"github.com/privadapp/gatepass/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

// writeDomainError maps service-layer errors onto HTTP statuses. Domain
// outcomes keep their sentinel message so clients can tell the cases
// apart; everything unrecognized is a 500 with no internals leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credential.ErrMissingInput),
		errors.Is(err, credential.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidState):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, credential.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credential.ErrAlreadyConsumed),
		errors.Is(err, credential.ErrGenerationConflict),
		errors.Is(err, auth.ErrRoleAlreadySet),
		errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, credential.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
