package credential_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/privadapp/gatepass/internal/credential"
	"github.com/privadapp/gatepass/internal/models"
)

func issueGuest(t *testing.T, svc *credential.Service, resident *models.User, name string) *models.AccessCredential {
	t.Helper()
	cred, err := svc.Issue(context.Background(), resident, credential.IssueRequest{
		VisitorName: name,
		VisitorType: models.VisitorGuest,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return cred
}

func TestValidateRoundTripByPassword(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid result, got reason %q", res.Reason)
	}
	if res.Credential.VisitorName != "Ana Ruiz" {
		t.Errorf("expected visitor Ana Ruiz, got %q", res.Credential.VisitorName)
	}
	if res.Issuer == nil || res.Issuer.ID != resident.ID {
		t.Error("expected issuer attached to the result")
	}
}

func TestValidateNormalizesManualEntry(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	sloppy := "  " + strings.ToLower(cred.Password) + " "
	res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: sloppy})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected trimmed+uppercased input to match, got reason %q", res.Reason)
	}
}

func TestValidatePasswordFallsBackToToken(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	// A guard typing the QR payload into the password field still matches.
	res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: cred.Token})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected token fallback to match, got reason %q", res.Reason)
	}
}

func TestValidateInputErrors(t *testing.T) {
	svc, _, _, guard := newTestService(t)

	_, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{})
	if !errors.Is(err, credential.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}

	_, err = svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: "AAAA-1111", Token: "tok"})
	if !errors.Is(err, credential.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for both fields set, got %v", err)
	}
}

func TestValidateUnknownCodeReportsNotFound(t *testing.T) {
	svc, _, _, guard := newTestService(t)

	res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: "ZZZZ-9999"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid || res.Reason != credential.ReasonNotFound {
		t.Fatalf("expected not_found, got valid=%v reason=%q", res.Valid, res.Reason)
	}
}

func TestValidateIsIdempotentWhileUnused(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	for i := 0; i < 2; i++ {
		res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: cred.Password})
		if err != nil {
			t.Fatalf("Validate #%d: %v", i+1, err)
		}
		if !res.Valid {
			t.Fatalf("Validate #%d: expected valid, got reason %q", i+1, res.Reason)
		}
	}
}

func TestValidateDeadlineBoundary(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	svc.WithClock(func() time.Time { return cred.ExpiresAt.Add(-time.Second) })
	res, err := svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil {
		t.Fatalf("Validate before deadline: %v", err)
	}
	if !res.Valid {
		t.Fatalf("one second before the deadline should validate, got reason %q", res.Reason)
	}

	svc.WithClock(func() time.Time { return cred.ExpiresAt.Add(time.Second) })
	res, err = svc.Validate(context.Background(), guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil {
		t.Fatalf("Validate after deadline: %v", err)
	}
	if res.Valid || res.Reason != credential.ReasonExpired {
		t.Fatalf("one second after the deadline should expire, got valid=%v reason=%q", res.Valid, res.Reason)
	}
}

func TestValidateExpiredThenConsumedReasons(t *testing.T) {
	svc, st, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")
	ctx := context.Background()

	svc.WithClock(func() time.Time { return cred.ExpiresAt.Add(time.Minute) })

	// First touch performs the passive expiry write.
	res, err := svc.Validate(ctx, guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Reason != credential.ReasonExpired {
		t.Fatalf("expected expired, got %q", res.Reason)
	}
	stored, err := st.GetCredentialByID(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetCredentialByID: %v", err)
	}
	if stored.State != models.StateExpired {
		t.Fatalf("expected passive write to land, state is %s", stored.State)
	}

	// A later touch finds the terminal state and reports already_consumed,
	// with the message still saying the code expired.
	res, err = svc.Validate(ctx, guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Reason != credential.ReasonAlreadyConsumed {
		t.Fatalf("expected already_consumed, got %q", res.Reason)
	}
	if !strings.Contains(res.Message, "expired") {
		t.Errorf("expected message to mention expiry, got %q", res.Message)
	}
}

func TestConfirmScenario(t *testing.T) {
	svc, st, resident, guard := newTestService(t)
	ctx := context.Background()

	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	res, err := svc.Validate(ctx, guard, credential.ValidateRequest{Password: cred.Password})
	if err != nil || !res.Valid {
		t.Fatalf("Validate: err=%v valid=%v", err, res != nil && res.Valid)
	}

	event, err := svc.Confirm(ctx, guard, credential.ConfirmRequest{
		CredentialID: cred.ID,
		EntryMode:    models.EntryOnFoot,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if event.CredentialID != cred.ID || event.GuardID != guard.ID {
		t.Error("event does not reference the credential and guard")
	}

	stored, err := st.GetCredentialByID(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetCredentialByID: %v", err)
	}
	if stored.State != models.StateUsed || stored.ConsumedAt == nil {
		t.Errorf("expected used with consumed_at set, got state=%s consumed_at=%v", stored.State, stored.ConsumedAt)
	}

	// Second confirm on the same id must lose.
	_, err = svc.Confirm(ctx, guard, credential.ConfirmRequest{
		CredentialID: cred.ID,
		EntryMode:    models.EntryOnFoot,
	})
	if !errors.Is(err, credential.ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}

	if got := len(st.Events()); got != 1 {
		t.Errorf("expected exactly one access event, got %d", got)
	}
}

func TestConfirmRejectsExpiredCredential(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	svc.WithClock(func() time.Time { return cred.ExpiresAt.Add(time.Minute) })
	_, err := svc.Confirm(context.Background(), guard, credential.ConfirmRequest{
		CredentialID: cred.ID,
		EntryMode:    models.EntryVehicle,
		Plates:       "ABC-123-D",
	})
	if !errors.Is(err, credential.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestConfirmValidatesEntryMode(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	_, err := svc.Confirm(context.Background(), guard, credential.ConfirmRequest{
		CredentialID: cred.ID,
		EntryMode:    "bicycle",
	})
	if !errors.Is(err, credential.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConfirmUnknownCredential(t *testing.T) {
	svc, _, _, guard := newTestService(t)

	_, err := svc.Confirm(context.Background(), guard, credential.ConfirmRequest{
		CredentialID: uuid.New(),
		EntryMode:    models.EntryOnFoot,
	})
	if !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Two dozen guards race to confirm one credential; exactly one wins and
// exactly one event is logged.
func TestConcurrentConfirmSingleWinner(t *testing.T) {
	svc, st, resident, guard := newTestService(t)
	ctx := context.Background()
	cred := issueGuest(t, svc, resident, "Ana Ruiz")

	const racers = 24
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		consumed int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Confirm(ctx, guard, credential.ConfirmRequest{
				CredentialID: cred.ID,
				EntryMode:    models.EntryOnFoot,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, credential.ErrAlreadyConsumed):
				consumed++
			default:
				t.Errorf("unexpected confirm error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if consumed != racers-1 {
		t.Fatalf("expected %d AlreadyConsumed losers, got %d", racers-1, consumed)
	}
	if got := len(st.Events()); got != 1 {
		t.Fatalf("expected exactly one access event, got %d", got)
	}
}

func TestCountersTreatOverdueUnusedAsExpired(t *testing.T) {
	svc, _, resident, guard := newTestService(t)
	ctx := context.Background()

	// Fixed clock keeps "today" stable across the 12h jump.
	base := time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return base })

	overdue := issueGuest(t, svc, resident, "Overdue Guest")
	used := issueGuest(t, svc, resident, "Used Guest")
	if _, err := svc.Confirm(ctx, guard, credential.ConfirmRequest{CredentialID: used.ID, EntryMode: models.EntryOnFoot}); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Fresh credential issued late enough to outlive the jump below.
	svc.WithClock(func() time.Time { return base.Add(10 * time.Hour) })
	issueGuest(t, svc, resident, "Active Guest")

	// Clock sits past the first deadline; no validation touched that row.
	svc.WithClock(func() time.Time { return overdue.ExpiresAt.Add(time.Minute) })

	dc, err := svc.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if dc.CredentialsTotal != 3 {
		t.Errorf("total: want 3, got %d", dc.CredentialsTotal)
	}
	if dc.CredentialsUnused != 1 {
		t.Errorf("unused: want 1, got %d", dc.CredentialsUnused)
	}
	if dc.CredentialsUsed != 1 {
		t.Errorf("used: want 1, got %d", dc.CredentialsUsed)
	}
	if dc.CredentialsExpired != 1 {
		t.Errorf("expired: want 1, got %d", dc.CredentialsExpired)
	}
	if dc.EventsToday != 1 || dc.EventsWeek != 1 {
		t.Errorf("events: want 1/1, got %d/%d", dc.EventsToday, dc.EventsWeek)
	}
}
