package handlers

import (
	"net/http"

	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/models"
)

type AuthHandler struct {
	svc *auth.Service
	mw  *auth.Middleware
}

func NewAuthHandler(svc *auth.Service, mw *auth.Middleware) *AuthHandler {
	return &AuthHandler{svc: svc, mw: mw}
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// Login is the local, stateless path: a matching handle and password get a
// self-contained bearer token and no cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Handle == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "handle and password are required")
		return
	}

	token, user, err := h.svc.Login(r.Context(), req.Handle, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// OIDCLogin redirects the browser to the federated provider.
func (h *AuthHandler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.BeginFederatedLogin(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "identity provider unavailable")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// OIDCCallback completes the code exchange and sets the session cookie.
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	sess, user, err := h.svc.CompleteFederatedLogin(r.Context(), state, code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	http.SetCookie(w, h.mw.SessionCookie(sess.ID, int(auth.SessionTTL.Seconds())))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"needs_role": user.Role == models.RoleUnset,
	})
}

// Logout drops the server-side session and clears the cookie. A bearer
// token cannot be revoked here; it ages out on its own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	if ident != nil && ident.Session != nil {
		if err := h.svc.Logout(r.Context(), ident.Session.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	http.SetCookie(w, h.mw.SessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the resolved identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": auth.CurrentUser(r.Context())})
}

type selectRoleRequest struct {
	Role models.Role `json:"role"`
}

// SelectRole is the one-shot role pick after a first federated login.
func (h *AuthHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	var req selectRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := auth.CurrentUser(r.Context())
	if err := h.svc.SelectRole(r.Context(), user.ID, req.Role); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"role": req.Role})
}
