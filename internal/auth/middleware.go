package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

// CookieName carries the session id for the cookie path.
const CookieName = "gatepass_session"

type IdentityKind int

const (
	// IdentityBearer came from a self-contained signed token; no
	// server-side state backs it.
	IdentityBearer IdentityKind = iota + 1
	// IdentitySession came from a cookie resolved against the session
	// store, possibly after a silent provider refresh.
	IdentitySession
)

// Identity is the resolved caller. Exactly one of Claims or Session is set,
// matching Kind; User is always set.
type Identity struct {
	Kind    IdentityKind
	User    *models.User
	Claims  *Claims
	Session *Session
}

type Middleware struct {
	tokens   *TokenManager
	sessions *SessionStore
	provider *Provider
	users    store.UserStore
	secure   bool
}

func NewMiddleware(tokens *TokenManager, sessions *SessionStore, provider *Provider, users store.UserStore, secureCookies bool) *Middleware {
	return &Middleware{
		tokens:   tokens,
		sessions: sessions,
		provider: provider,
		users:    users,
		secure:   secureCookies,
	}
}

// Authenticate resolves the caller through one of the two paths. A bearer
// header is a definitive stateless-auth attempt: if it fails there is no
// fallback to the cookie. Requests with neither credential are rejected
// before any business logic runs.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			ident, err := m.resolveBearer(token)
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil {
			writeAuthError(w, "authentication required")
			return
		}
		ident, err := m.resolveSession(r.Context(), cookie.Value)
		if err != nil {
			writeAuthError(w, "invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

func (m *Middleware) resolveBearer(token string) (*Identity, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	// The token is self-contained: identity comes from the claims, with no
	// store round-trip to keep the path usable when only redis is down.
	user := &models.User{
		ID:   claims.UserID(),
		Role: claims.Role,
	}
	if claims.Handle != "" {
		h := claims.Handle
		user.Handle = &h
	}
	return &Identity{Kind: IdentityBearer, User: user, Claims: claims}, nil
}

func (m *Middleware) resolveSession(ctx context.Context, sessionID string) (*Identity, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Federated() && !time.Now().UTC().Before(*sess.TokenExpiry) {
		if err := m.refreshSession(ctx, sess); err != nil {
			return nil, err
		}
	}

	user, err := m.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return &Identity{Kind: IdentitySession, User: user, Session: sess}, nil
}

// refreshSession silently renews an expired federated access token and
// updates the stored session in place.
func (m *Middleware) refreshSession(ctx context.Context, sess *Session) error {
	if sess.RefreshToken == "" {
		return errors.New("federated session has no refresh token")
	}
	tok, err := m.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return err
	}
	sess.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	expiry := tok.Expiry.UTC()
	sess.TokenExpiry = &expiry
	return m.sessions.Update(ctx, sess)
}

// RequireRole gates an operation on the role lattice. It never reveals
// whether the underlying resource exists: the check runs before any
// business logic and answers only with forbidden.
func (m *Middleware) RequireRole(required ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := IdentityFromContext(r.Context())
			if ident == nil {
				writeAuthError(w, "authentication required")
				return
			}
			if !Allowed(ident.User.Role, required...) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionCookie builds the cookie carrying a session id. An empty id with
// maxAge -1 clears it on logout.
func (m *Middleware) SessionCookie(id string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type ctxKey string

const identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey).(*Identity)
	return ident
}

// CurrentUser is a convenience for handlers; nil when unauthenticated.
func CurrentUser(ctx context.Context) *models.User {
	if ident := IdentityFromContext(ctx); ident != nil {
		return ident.User
	}
	return nil
}
