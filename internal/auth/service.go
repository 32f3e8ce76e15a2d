// Package auth implements both authentication paths (stateless bearer
// tokens and server-side cookie sessions with federated refresh), local
// and federated login, and the role lattice consulted by every protected
// operation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

var (
	// ErrUnauthorized covers every failed login. The message is
	// deliberately generic: an unknown handle and a wrong password must be
	// indistinguishable to the caller.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrRoleAlreadySet means the one-shot self-service role selection was
	// already spent.
	ErrRoleAlreadySet = errors.New("role already selected")
	// ErrInvalidRole rejects unknown role names.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput is returned for malformed, caller-fixable requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState rejects an OIDC callback with a missing or replayed
	// state nonce.
	ErrInvalidState = errors.New("invalid login state")
)

type Service struct {
	store    store.UserStore
	tokens   *TokenManager
	sessions *SessionStore
	provider *Provider
}

func NewService(st store.UserStore, tokens *TokenManager, sessions *SessionStore, provider *Provider) *Service {
	return &Service{store: st, tokens: tokens, sessions: sessions, provider: provider}
}

// Login verifies a local account and mints a bearer token. No server-side
// session is created; the stateless path serves non-browser clients.
func (s *Service) Login(ctx context.Context, handle, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing work as a real verify so the timing
			// does not betray whether the handle exists.
			_, _ = VerifyPassword(password, dummyHash)
			return "", nil, ErrUnauthorized
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash == nil {
		_, _ = VerifyPassword(password, dummyHash)
		return "", nil, ErrUnauthorized
	}

	ok, err := VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", nil, ErrUnauthorized
	}

	token, err := s.tokens.Mint(user)
	if err != nil {
		return "", nil, fmt.Errorf("mint token: %w", err)
	}
	return token, user, nil
}

// BeginFederatedLogin stores a state nonce and returns the provider
// redirect URL.
func (s *Service) BeginFederatedLogin(ctx context.Context) (string, error) {
	state, err := s.sessions.CreateState(ctx)
	if err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(ctx, state)
}

// CompleteFederatedLogin handles the provider callback: it checks the
// state nonce, exchanges the code, upserts the user from provider-asserted
// claims, and establishes a cookie session. First-time users come back
// with no role; they pick one once via SelectRole.
func (s *Service) CompleteFederatedLogin(ctx context.Context, state, code string) (*Session, *models.User, error) {
	ok, err := s.sessions.ConsumeState(ctx, state)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrInvalidState
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, err := s.provider.Userinfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	providerName := s.provider.Name()
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	user, err := s.store.UpsertUser(ctx, &models.User{
		ID:       uuid.New(),
		Name:     name,
		Role:     models.RoleUnset,
		Provider: &providerName,
		Subject:  &claims.Subject,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert user: %w", err)
	}

	expiry := tok.Expiry.UTC()
	sess := &Session{
		UserID:       user.ID,
		Provider:     providerName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  &expiry,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, err
	}

	slog.Info("federated login", "user_id", user.ID, "first_login", user.Role == models.RoleUnset)
	return sess, user, nil
}

// Logout invalidates the server-side session. Bearer tokens are not
// revocable here; they simply age out.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// SelectRole is the one-shot self-service role pick for federated users.
func (s *Service) SelectRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	if !role.Valid() || role == models.RoleAdmin {
		// Nobody self-selects into administrator.
		return ErrInvalidRole
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.Role != models.RoleUnset {
		return ErrRoleAlreadySet
	}
	if err := s.store.SetUserRole(ctx, userID, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// ProvisionLocalUser creates a local account with a fixed role. Admin-only
// at the API layer.
func (s *Service) ProvisionLocalUser(ctx context.Context, name, handle, password string, role models.Role) (*models.User, error) {
	if name == "" || handle == "" || password == "" {
		return nil, fmt.Errorf("%w: name, handle and password are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateLocalUser(ctx, name, handle, hash, role)
	if err != nil {
		return nil, fmt.Errorf("create local user: %w", err)
	}
	return user, nil
}

// ResetPassword replaces a local user's password hash.
func (s *Service) ResetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.ResetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
