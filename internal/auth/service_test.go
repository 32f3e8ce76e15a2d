package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/privadapp/gatepass/internal/config"
	"github.com/privadapp/gatepass/internal/models"
	"github.com/privadapp/gatepass/internal/store/memory"
)

func newTestAuthService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := memory.New()
	svc := NewService(st, NewTokenManager("test-secret"), NewSessionStore(client), NewProvider(config.OIDCConfig{}))
	return svc, st
}

func TestLoginMintsBearerToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.ProvisionLocalUser(ctx, "Booth Guard", "guard1", "a long password", models.RoleGuard)
	if err != nil {
		t.Fatalf("ProvisionLocalUser: %v", err)
	}

	token, got, err := svc.Login(ctx, "guard1", "a long password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a bearer token")
	}
	if got.ID != user.ID {
		t.Error("login returned the wrong user")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.ProvisionLocalUser(ctx, "Booth Guard", "guard1", "a long password", models.RoleGuard); err != nil {
		t.Fatalf("ProvisionLocalUser: %v", err)
	}

	_, _, wrongPass := svc.Login(ctx, "guard1", "not the password")
	_, _, noSuchUser := svc.Login(ctx, "ghost", "whatever")

	if !errors.Is(wrongPass, ErrUnauthorized) {
		t.Fatalf("wrong password: expected ErrUnauthorized, got %v", wrongPass)
	}
	if !errors.Is(noSuchUser, ErrUnauthorized) {
		t.Fatalf("unknown handle: expected ErrUnauthorized, got %v", noSuchUser)
	}
	// Same sentinel, same message: no user-enumeration signal.
	if wrongPass.Error() != noSuchUser.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPass.Error(), noSuchUser.Error())
	}
}

func TestSelectRoleIsOneShot(t *testing.T) {
	svc, st := newTestAuthService(t)
	ctx := context.Background()

	provider := "https://id.example.com"
	subject := "sub-123"
	user, err := st.UpsertUser(ctx, &models.User{
		Name:     "New Neighbor",
		Role:     models.RoleUnset,
		Provider: &provider,
		Subject:  &subject,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := svc.SelectRole(ctx, user.ID, models.RoleResident); err != nil {
		t.Fatalf("SelectRole: %v", err)
	}
	got, err := st.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Role != models.RoleResident {
		t.Fatalf("expected resident, got %q", got.Role)
	}

	err = svc.SelectRole(ctx, user.ID, models.RoleGuard)
	if !errors.Is(err, ErrRoleAlreadySet) {
		t.Fatalf("expected ErrRoleAlreadySet on second pick, got %v", err)
	}
}

func TestSelectRoleRejectsAdminAndUnknown(t *testing.T) {
	svc, st := newTestAuthService(t)
	ctx := context.Background()

	user, err := st.UpsertUser(ctx, &models.User{Name: "N", Role: models.RoleUnset})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	for _, role := range []models.Role{models.RoleAdmin, "janitor", models.RoleUnset} {
		if err := svc.SelectRole(ctx, user.ID, role); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("role %q: expected ErrInvalidRole, got %v", role, err)
		}
	}
}

func TestProvisionLocalUserRejectsDuplicateHandle(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.ProvisionLocalUser(ctx, "A", "handle", "password one", models.RoleResident); err != nil {
		t.Fatalf("first provision: %v", err)
	}
	if _, err := svc.ProvisionLocalUser(ctx, "B", "handle", "password two", models.RoleResident); err == nil {
		t.Fatal("expected duplicate handle to fail")
	}
}

func TestResetPasswordChangesLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.ProvisionLocalUser(ctx, "Booth Guard", "guard1", "old password!", models.RoleGuard)
	if err != nil {
		t.Fatalf("ProvisionLocalUser: %v", err)
	}
	if err := svc.ResetPassword(ctx, user.ID, "new password!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, _, err := svc.Login(ctx, "guard1", "old password!"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "guard1", "new password!"); err != nil {
		t.Fatalf("new password should work, got %v", err)
	}
}

func TestResetPasswordUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)
	if err := svc.ResetPassword(context.Background(), uuid.New(), "whatever pass"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
