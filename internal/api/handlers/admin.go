package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/auth"
	"github.com/privadapp/gatepass/internal/cache"
	"github.com/privadapp/gatepass/internal/credential"
	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

const (
	defaultEventWindowDays = 7
	maxEventWindowDays     = 90

	countersCacheKey = "dashboard:counters"
	countersCacheTTL = 30 * time.Second
)

type AdminHandler struct {
	creds    *credential.Service
	authSvc  *auth.Service
	users    store.UserStore
	counters *cache.Cache
}

func NewAdminHandler(creds *credential.Service, authSvc *auth.Service, users store.UserStore, counters *cache.Cache) *AdminHandler {
	return &AdminHandler{creds: creds, authSvc: authSvc, users: users, counters: counters}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

type createUserRequest struct {
	Name     string      `json:"name"`
	Handle   string      `json:"handle"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// CreateUser provisions a local account; the role is fixed at creation.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authSvc.ProvisionLocalUser(r.Context(), req.Name, req.Handle, req.Password, req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authSvc.ResetPassword(r.Context(), id, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}

// Events lists recent access events inside a day window.
func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = defaultEventWindowDays
	}
	if days > maxEventWindowDays {
		days = maxEventWindowDays
	}

	events, err := h.creds.RecentEvents(r.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events), "window_days": days})
}

// Stats serves the dashboard counters, cached briefly so a dashboard
// polling every few seconds does not hammer the aggregate queries.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.counters != nil {
		var cached store.DashboardCounters
		if err := h.counters.Get(r.Context(), countersCacheKey, &cached); err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"counters": cached, "cached": true})
			return
		}
	}

	dc, err := h.creds.Counters(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if h.counters != nil {
		_ = h.counters.Set(r.Context(), countersCacheKey, dc, countersCacheTTL)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counters": dc, "cached": false})
}

// Credentials lists every credential in the community.
func (h *AdminHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.creds.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"credentials": creds, "count": len(creds)})
}
