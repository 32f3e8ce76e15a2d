// Package credential implements the access-credential lifecycle: issuance
// with collision-safe secret generation, listing, passive expiry, and the
// guard-facing validate/confirm protocol.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/passgen"
	"github.com/privadapp/gatepass/internal/store"
)

// maxGenerateAttempts bounds the regenerate-on-collision loop. Collisions
// are rare (24^4*10^4 password space) so more than a couple in a row means
// something is wrong with the generator, not bad luck.
const maxGenerateAttempts = 3

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type IssueRequest struct {
	VisitorName string             `json:"visitor_name"`
	VisitorType models.VisitorType `json:"visitor_type"`
	Note        string             `json:"note"`
}

// Issue creates a credential in state unused with a 12-hour deadline and
// returns it with the plaintext password. This is the only moment the
// password leaves the server in the clear; the issuer passes it (or the
// token, as a QR code) to the visitor out of band.
func (s *Service) Issue(ctx context.Context, issuer *models.User, req IssueRequest) (*models.AccessCredential, error) {
	visitorName := strings.TrimSpace(req.VisitorName)
	if visitorName == "" {
		return nil, fmt.Errorf("%w: visitor name is required", ErrInvalidInput)
	}
	if !req.VisitorType.Valid() {
		return nil, fmt.Errorf("%w: unknown visitor type %q", ErrInvalidInput, req.VisitorType)
	}

	now := s.now()
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		password, err := passgen.Password()
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		token, err := passgen.Token()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}

		cred := &models.AccessCredential{
			ID:          uuid.New(),
			Token:       token,
			Password:    password,
			VisitorName: visitorName,
			VisitorType: req.VisitorType,
			Note:        req.Note,
			IssuerID:    issuer.ID,
			State:       models.StateUnused,
			CreatedAt:   now,
			ExpiresAt:   now.Add(models.CredentialTTL),
		}

		err = s.store.CreateCredential(ctx, cred)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("persist credential: %w", err)
		}
		slog.Warn("credential secret collision, regenerating", "attempt", attempt)
	}
	return nil, ErrGenerationConflict
}

// ListForIssuer returns the issuer's credentials, newest first. States are
// reported as effective: a credential past its deadline reads as expired
// even if no validation attempt has touched the row yet.
func (s *Service) ListForIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.AccessCredential, error) {
	creds, err := s.store.ListCredentialsByIssuer(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	s.applyEffectiveState(creds)
	return creds, nil
}

// ListAll returns every credential in the system, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.AccessCredential, error) {
	creds, err := s.store.ListAllCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all credentials: %w", err)
	}
	s.applyEffectiveState(creds)
	return creds, nil
}

func (s *Service) applyEffectiveState(creds []models.AccessCredential) {
	now := s.now()
	for i := range creds {
		creds[i].State = creds[i].EffectiveState(now)
	}
}

// MarkExpired transitions an overdue unused credential to expired. Losing
// the write (already used, already expired) is a no-op: expiry is detected
// opportunistically during validation, so two guards may race here and the
// second conditional write simply affects zero rows.
func (s *Service) MarkExpired(ctx context.Context, id uuid.UUID) error {
	_, err := s.store.CompareAndSetCredentialState(ctx, id, models.StateUnused, models.StateExpired, time.Time{})
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	return nil
}
