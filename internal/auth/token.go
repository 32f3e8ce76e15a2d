package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
)

// BearerTTL is how long a minted bearer token stays valid. Bearer tokens
// are stateless and not server-revocable; expiry is their only bound.
const BearerTTL = 7 * 24 * time.Hour

type Claims struct {
	Handle string      `json:"handle,omitempty"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies the self-contained bearer tokens used by
// the stateless authentication path.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    BearerTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *TokenManager) Mint(user *models.User) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if user.Handle != nil {
		claims.Handle = *user.Handle
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks signature and expiry, pinning the signing
// algorithm so a crafted header cannot downgrade it.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("invalid subject in token: %w", err)
	}
	return claims, nil
}

// UserID returns the subject as a uuid. Verify already guaranteed it parses.
func (c *Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}
