package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store"
)

// Reason codes a guard's client can branch on. "Expired" is reserved for
// the passive-expiry outcome; a credential already sitting in a terminal
// state reports AlreadyConsumed, with the human message telling the two
// cases apart.
const (
	ReasonNotFound        = "not_found"
	ReasonExpired         = "expired"
	ReasonAlreadyConsumed = "already_consumed"
)

type ValidateRequest struct {
	// Password holds manual booth entry. After a failed password lookup the
	// same raw input is retried as a token, since guards sometimes type the
	// code printed under the QR symbol.
	Password string `json:"password"`
	// Token holds a scanned QR payload and skips the password lookup.
	Token string `json:"token"`
}

type ValidationResult struct {
	Valid      bool                     `json:"valid"`
	Reason     string                   `json:"reason,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Credential *models.AccessCredential `json:"credential,omitempty"`
	Issuer     *models.User             `json:"issuer,omitempty"`
}

// Validate checks a credential's eligibility without consuming it, so the
// guard can review visitor details before committing. The only write it
// ever performs is the passive unused->expired transition.
func (s *Service) Validate(ctx context.Context, guard *models.User, req ValidateRequest) (*ValidationResult, error) {
	password := strings.ToUpper(strings.TrimSpace(req.Password))
	token := strings.TrimSpace(req.Token)

	if password == "" && token == "" {
		return nil, ErrMissingInput
	}
	if password != "" && token != "" {
		return nil, fmt.Errorf("%w: supply either a password or a token, not both", ErrInvalidInput)
	}

	cred, err := s.lookup(ctx, password, strings.TrimSpace(req.Password), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ValidationResult{Valid: false, Reason: ReasonNotFound, Message: "no matching access code"}, nil
		}
		return nil, err
	}

	now := s.now()
	switch {
	case cred.State == models.StateUnused && cred.DeadlinePassed(now):
		if err := s.MarkExpired(ctx, cred.ID); err != nil {
			return nil, err
		}
		return &ValidationResult{Valid: false, Reason: ReasonExpired, Message: "access code expired"}, nil

	case cred.State == models.StateUsed:
		return &ValidationResult{Valid: false, Reason: ReasonAlreadyConsumed, Message: "access code already used"}, nil

	case cred.State == models.StateExpired:
		return &ValidationResult{Valid: false, Reason: ReasonAlreadyConsumed, Message: "access code expired"}, nil
	}

	issuer, err := s.store.GetUserByID(ctx, cred.IssuerID)
	if err != nil {
		return nil, fmt.Errorf("load issuer: %w", err)
	}
	return &ValidationResult{Valid: true, Credential: cred, Issuer: issuer}, nil
}

// lookup resolves the dual-meaning input: a normalized password first, then
// the raw string as a token fallback; a tagged token goes straight to the
// token index.
func (s *Service) lookup(ctx context.Context, password, rawPassword, token string) (*models.AccessCredential, error) {
	if token != "" {
		return s.store.GetCredentialByToken(ctx, token)
	}
	cred, err := s.store.GetCredentialByPassword(ctx, password)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.GetCredentialByToken(ctx, rawPassword)
}

type ConfirmRequest struct {
	CredentialID uuid.UUID        `json:"credential_id"`
	EntryMode    models.EntryMode `json:"entry_mode"`
	Plates       string           `json:"plates"`
	Note         string           `json:"note"`
}

// Confirm consumes a previously validated credential. The window between
// validate and confirm is closed by the conditional write: of all guards
// racing on the same credential exactly one sees an affected row, and only
// that one appends the access event.
func (s *Service) Confirm(ctx context.Context, guard *models.User, req ConfirmRequest) (*models.AccessEvent, error) {
	if !req.EntryMode.Valid() {
		return nil, fmt.Errorf("%w: unknown entry mode %q", ErrInvalidInput, req.EntryMode)
	}

	cred, err := s.store.GetCredentialByID(ctx, req.CredentialID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	switch cred.State {
	case models.StateUsed:
		return nil, ErrAlreadyConsumed
	case models.StateExpired:
		return nil, ErrExpired
	}

	now := s.now()
	if cred.DeadlinePassed(now) {
		if err := s.MarkExpired(ctx, cred.ID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	affected, err := s.store.CompareAndSetCredentialState(ctx, cred.ID, models.StateUnused, models.StateUsed, now)
	if err != nil {
		return nil, fmt.Errorf("consume credential: %w", err)
	}
	if affected == 0 {
		// Another guard won between our read and the write.
		return nil, ErrAlreadyConsumed
	}

	event := &models.AccessEvent{
		ID:           uuid.New(),
		CredentialID: cred.ID,
		GuardID:      guard.ID,
		EntryMode:    req.EntryMode,
		CreatedAt:    now,
	}
	if req.Plates != "" {
		event.Plates = &req.Plates
	}
	if req.Note != "" {
		event.Note = &req.Note
	}
	if err := s.store.AppendAccessEvent(ctx, event); err != nil {
		// The consume already committed; do not retry, a second append
		// would double-log the entry.
		return nil, fmt.Errorf("append access event: %w", err)
	}
	return event, nil
}

// RecentEvents lists access events inside the window, newest first.
func (s *Service) RecentEvents(ctx context.Context, windowDays int) ([]models.AccessEventDetail, error) {
	events, err := s.store.ListRecentAccessEvents(ctx, windowDays)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return events, nil
}

// Counters computes the dashboard snapshot as of now.
func (s *Service) Counters(ctx context.Context) (*store.DashboardCounters, error) {
	dc, err := s.store.ComputeDashboardCounters(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("compute counters: %w", err)
	}
	return dc, nil
}
