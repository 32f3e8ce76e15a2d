package auth

import (
	"testing"

	"github.com/privadapp/gatepass/internal/models"
)

func TestAllowedLattice(t *testing.T) {
	cases := []struct {
		name     string
		role     models.Role
		required []models.Role
		want     bool
	}{
		{"admin passes resident ops", models.RoleAdmin, []models.Role{models.RoleResident}, true},
		{"admin passes guard ops", models.RoleAdmin, []models.Role{models.RoleGuard}, true},
		{"admin passes admin-only ops", models.RoleAdmin, []models.Role{models.RoleAdmin}, true},
		{"resident passes resident ops", models.RoleResident, []models.Role{models.RoleResident, models.RoleAdmin}, true},
		{"resident fails guard ops", models.RoleResident, []models.Role{models.RoleGuard, models.RoleAdmin}, false},
		{"guard passes guard ops", models.RoleGuard, []models.Role{models.RoleGuard, models.RoleAdmin}, true},
		{"guard fails resident ops", models.RoleGuard, []models.Role{models.RoleResident, models.RoleAdmin}, false},
		{"guard fails admin-only ops", models.RoleGuard, []models.Role{models.RoleAdmin}, false},
		{"unset role fails everything", models.RoleUnset, []models.Role{models.RoleResident, models.RoleGuard, models.RoleAdmin}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.role, tc.required...); got != tc.want {
				t.Fatalf("Allowed(%q, %v) = %v, want %v", tc.role, tc.required, got, tc.want)
			}
		})
	}
}
