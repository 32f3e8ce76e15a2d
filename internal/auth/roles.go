package auth

import "github.com/privadapp/gatepass/internal/models"

// Allowed is the role lattice check: administrators hold every capability,
// while guard and resident are incomparable and pass only when named in the
// required set. A user with no role yet passes nothing. Pure function,
// independent of how the identity was authenticated.
func Allowed(role models.Role, required ...models.Role) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, r := range required {
		if role == r && role != models.RoleUnset {
			return true
		}
	}
	return false
}
