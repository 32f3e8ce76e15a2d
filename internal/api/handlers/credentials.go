package handlers

import (
	"net/http"

	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/credential"
)

type CredentialHandler struct {
	svc *credential.Service
}

func NewCredentialHandler(svc *credential.Service) *CredentialHandler {
	return &CredentialHandler{svc: svc}
}

// Issue creates a visitor credential. The response is the one place the
// plaintext gate password appears; the client renders the token as a QR
// code and shares either out of band.
func (h *CredentialHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req credential.IssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issuer := auth.CurrentUser(r.Context())
	cred, err := h.svc.Issue(r.Context(), issuer, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"credential": cred})
}

// List returns the caller's own credentials, newest first.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	creds, err := h.svc.ListForIssuer(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"credentials": creds, "count": len(creds)})
}
