package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionTTL bounds how long a cookie session lives server-side.
const SessionTTL = 30 * 24 * time.Hour

// ErrSessionNotFound means the cookie referenced no stored session, either
// because it expired or was invalidated by logout.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record behind a cookie. TokenExpiry is nil
// for local sessions; federated sessions carry the provider's access-token
// expiry and refresh material.
type Session struct {
	ID           string     `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Provider     string     `json:"provider,omitempty"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Federated reports whether the session must track provider token expiry.
func (s *Session) Federated() bool {
	return s.TokenExpiry != nil
}

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, ttl: SessionTTL}
}

func sessionKey(id string) string { return "session:" + id }

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (st *SessionStore) Create(ctx context.Context, sess *Session) error {
	id, err := newSessionID()
	if err != nil {
		return err
	}
	sess.ID = id
	sess.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := st.client.Set(ctx, sessionKey(id), data, st.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (st *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := st.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update rewrites the session in place, keeping the remaining TTL so a
// token refresh does not extend the session's life.
func (st *SessionStore) Update(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := st.client.Set(ctx, sessionKey(sess.ID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (st *SessionStore) Delete(ctx context.Context, id string) error {
	if err := st.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- OIDC state nonces, stored alongside sessions with a short TTL ---

const stateTTL = 10 * time.Minute

func stateKey(state string) string { return "oidcstate:" + state }

// CreateState stores a single-use login state nonce and returns it.
func (st *SessionStore) CreateState(ctx context.Context) (string, error) {
	state, err := newSessionID()
	if err != nil {
		return "", err
	}
	if err := st.client.Set(ctx, stateKey(state), "1", stateTTL).Err(); err != nil {
		return "", fmt.Errorf("store login state: %w", err)
	}
	return state, nil
}

// ConsumeState checks and deletes a state nonce in one pass.
func (st *SessionStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	n, err := st.client.Del(ctx, stateKey(state)).Result()
	if err != nil {
		return false, fmt.Errorf("consume login state: %w", err)
	}
	return n > 0, nil
}
