// Package store defines the persistence contract for users, access
// credentials, and access events. Implementations live in subpackages:
// postgres for production, memory for tests and dev.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
)

var (
	// ErrNotFound means no record matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate means a uniqueness constraint rejected the write
	// (credential password or token collision, duplicate handle).
	ErrDuplicate = errors.New("duplicate record")
)

// DashboardCounters is the admin dashboard snapshot as of a given instant.
// Expired counts credentials whose deadline has passed even when the passive
// expiry write has not reached the row yet.
type DashboardCounters struct {
	CredentialsTotal   int            `json:"credentials_total"`
	CredentialsUnused  int            `json:"credentials_unused"`
	CredentialsUsed    int            `json:"credentials_used"`
	CredentialsExpired int            `json:"credentials_expired"`
	EventsToday        int            `json:"events_today"`
	EventsWeek         int            `json:"events_week"`
	UsersByRole        map[string]int `json:"users_by_role"`
}

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	// GetUserBySubject looks a federated user up by (provider, subject).
	GetUserBySubject(ctx context.Context, provider, subject string) (*models.User, error)
	// UpsertUser inserts the user or, when (provider, subject) already
	// exists, refreshes the display name and returns the stored record.
	UpsertUser(ctx context.Context, u *models.User) (*models.User, error)
	CreateLocalUser(ctx context.Context, name, handle, passwordHash string, role models.Role) (*models.User, error)
	SetUserRole(ctx context.Context, id uuid.UUID, role models.Role) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type CredentialStore interface {
	// CreateCredential fails with ErrDuplicate on a password or token
	// collision; the caller regenerates and retries.
	CreateCredential(ctx context.Context, c *models.AccessCredential) error
	GetCredentialByID(ctx context.Context, id uuid.UUID) (*models.AccessCredential, error)
	GetCredentialByPassword(ctx context.Context, password string) (*models.AccessCredential, error)
	GetCredentialByToken(ctx context.Context, token string) (*models.AccessCredential, error)
	ListCredentialsByIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.AccessCredential, error)
	ListAllCredentials(ctx context.Context) ([]models.AccessCredential, error)
	// CompareAndSetCredentialState transitions id from expected to next in a
	// single conditional write and reports the number of rows affected.
	// Zero means the caller lost the race, which is an outcome, not an
	// error. consumedAt is recorded only on the transition to used.
	CompareAndSetCredentialState(ctx context.Context, id uuid.UUID, expected, next models.CredentialState, consumedAt time.Time) (int64, error)
}

type EventStore interface {
	AppendAccessEvent(ctx context.Context, e *models.AccessEvent) error
	ListRecentAccessEvents(ctx context.Context, windowDays int) ([]models.AccessEventDetail, error)
	ComputeDashboardCounters(ctx context.Context, asOf time.Time) (*DashboardCounters, error)
}

// Store is the full contract the service layer programs against.
type Store interface {
	UserStore
	CredentialStore
	EventStore
}
