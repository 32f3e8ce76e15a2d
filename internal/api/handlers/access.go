package handlers

import (
	"net/http"

	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/credential"
)

type AccessHandler struct {
	svc *credential.Service
}

func NewAccessHandler(svc *credential.Service) *AccessHandler {
	return &AccessHandler{svc: svc}
}

// Validate checks a code without consuming it. Domain outcomes (no match,
// expired, already used) are 200 responses with valid=false and a reason,
// so the booth UI can tell them apart without error handling.
func (h *AccessHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req credential.ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	guard := auth.CurrentUser(r.Context())
	res, err := h.svc.Validate(r.Context(), guard, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Confirm consumes a previously validated credential and logs the entry.
func (h *AccessHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req credential.ConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	guard := auth.CurrentUser(r.Context())
	event, err := h.svc.Confirm(r.Context(), guard, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"event": event})
}
