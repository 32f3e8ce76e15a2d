package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialTTL is how long an issued credential stays valid.
const CredentialTTL = 12 * time.Hour

type CredentialState string

const (
	StateUnused  CredentialState = "unused"
	StateUsed    CredentialState = "used"
	StateExpired CredentialState = "expired"
)

// Terminal reports whether the state admits no further transition.
// The only legal transitions are unused->used and unused->expired.
func (s CredentialState) Terminal() bool {
	return s == StateUsed || s == StateExpired
}

type VisitorType string

const (
	VisitorGuest    VisitorType = "guest"
	VisitorSupplier VisitorType = "supplier"
	VisitorService  VisitorType = "service"
)

func (v VisitorType) Valid() bool {
	switch v {
	case VisitorGuest, VisitorSupplier, VisitorService:
		return true
	}
	return false
}

type AccessCredential struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Token       string          `json:"token" db:"token"`
	Password    string          `json:"password" db:"password"`
	VisitorName string          `json:"visitor_name" db:"visitor_name"`
	VisitorType VisitorType     `json:"visitor_type" db:"visitor_type"`
	Note        string          `json:"note,omitempty" db:"note"`
	IssuerID    uuid.UUID       `json:"issuer_id" db:"issuer_id"`
	State       CredentialState `json:"state" db:"state"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at" db:"expires_at"`
	ConsumedAt  *time.Time      `json:"consumed_at,omitempty" db:"consumed_at"`
}

// DeadlinePassed reports whether the credential's deadline has passed at
// the given instant. The deadline itself counts as passed.
func (c *AccessCredential) DeadlinePassed(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// EffectiveState is the state a reader should see at the given instant:
// an unused credential past its deadline reads as expired even before the
// passive expiry write has touched the row.
func (c *AccessCredential) EffectiveState(now time.Time) CredentialState {
	if c.State == StateUnused && c.DeadlinePassed(now) {
		return StateExpired
	}
	return c.State
}
