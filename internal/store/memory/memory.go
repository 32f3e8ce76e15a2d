// Package memory is a mutex-guarded in-memory store implementation,
// intended for tests and dev environments. It honors the same uniqueness
// and compare-and-set semantics as the postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

type Store struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	credentials map[uuid.UUID]*models.AccessCredential
	events      []*models.AccessEvent
}

func New() *Store {
	return &Store{
		users:       make(map[uuid.UUID]*models.User),
		credentials: make(map[uuid.UUID]*models.AccessCredential),
	}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func copyCredential(c *models.AccessCredential) *models.AccessCredential {
	cp := *c
	if c.ConsumedAt != nil {
		t := *c.ConsumedAt
		cp.ConsumedAt = &t
	}
	return &cp
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByHandle(_ context.Context, handle string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Handle != nil && *u.Handle == handle {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserBySubject(_ context.Context, provider, subject string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.findBySubject(provider, subject); u != nil {
		return copyUser(u), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) findBySubject(provider, subject string) *models.User {
	for _, u := range s.users {
		if u.Provider != nil && *u.Provider == provider && u.Subject != nil && *u.Subject == subject {
			return u
		}
	}
	return nil
}

func (s *Store) UpsertUser(_ context.Context, in *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Provider != nil && in.Subject != nil {
		if existing := s.findBySubject(*in.Provider, *in.Subject); existing != nil {
			existing.Name = in.Name
			return copyUser(existing), nil
		}
	}

	u := copyUser(in)
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) CreateLocalUser(_ context.Context, name, handle, passwordHash string, role models.Role) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Handle != nil && *u.Handle == handle {
			return nil, store.ErrDuplicate
		}
	}

	u := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Handle:       &handle,
		PasswordHash: &passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) SetUserRole(_ context.Context, id uuid.UUID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *Store) ResetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Handle == nil {
		return store.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateCredential(_ context.Context, c *models.AccessCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.credentials {
		if existing.Password == c.Password || existing.Token == c.Token {
			return store.ErrDuplicate
		}
	}
	s.credentials[c.ID] = copyCredential(c)
	return nil
}

func (s *Store) GetCredentialByID(_ context.Context, id uuid.UUID) (*models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyCredential(c), nil
}

func (s *Store) GetCredentialByPassword(_ context.Context, password string) (*models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.Password == password {
			return copyCredential(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetCredentialByToken(_ context.Context, token string) (*models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.Token == token {
			return copyCredential(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCredentialsByIssuer(_ context.Context, issuerID uuid.UUID) ([]models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccessCredential
	for _, c := range s.credentials {
		if c.IssuerID == issuerID {
			out = append(out, *copyCredential(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAllCredentials(_ context.Context) ([]models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AccessCredential, 0, len(s.credentials))
	for _, c := range s.credentials {
		out = append(out, *copyCredential(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CompareAndSetCredentialState(_ context.Context, id uuid.UUID, expected, next models.CredentialState, consumedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok || c.State != expected {
		return 0, nil
	}
	c.State = next
	if next == models.StateUsed {
		t := consumedAt
		c.ConsumedAt = &t
	}
	return 1, nil
}

func (s *Store) AppendAccessEvent(_ context.Context, e *models.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) ListRecentAccessEvents(_ context.Context, windowDays int) ([]models.AccessEventDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var out []models.AccessEventDetail
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		d := models.AccessEventDetail{AccessEvent: *e}
		if c, ok := s.credentials[e.CredentialID]; ok {
			d.VisitorName = c.VisitorName
			d.VisitorType = string(c.VisitorType)
		}
		if g, ok := s.users[e.GuardID]; ok {
			d.GuardName = g.Name
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ComputeDashboardCounters(_ context.Context, asOf time.Time) (*store.DashboardCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dc := &store.DashboardCounters{UsersByRole: map[string]int{}}
	for _, c := range s.credentials {
		dc.CredentialsTotal++
		switch c.EffectiveState(asOf) {
		case models.StateUnused:
			dc.CredentialsUnused++
		case models.StateUsed:
			dc.CredentialsUsed++
		case models.StateExpired:
			dc.CredentialsExpired++
		}
	}
	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	weekStart := asOf.AddDate(0, 0, -7)
	for _, e := range s.events {
		if !e.CreatedAt.Before(dayStart) {
			dc.EventsToday++
		}
		if !e.CreatedAt.Before(weekStart) {
			dc.EventsWeek++
		}
	}
	for _, u := range s.users {
		dc.UsersByRole[string(u.Role)]++
	}
	return dc, nil
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *Store) Events() []models.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AccessEvent, len(s.events))
	for i, e := range s.events {
		out[i] = *e
	}
	return out
}
