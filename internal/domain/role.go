package domain

import "strings"

// Role is the closed set of account roles.
type Role string

// Role constants define the allowed user roles.
const (
	RoleTourist  Role = "tourist"
	RoleGuide    Role = "guide"
	RoleAdmin    Role = "admin"
	RoleProvider Role = "provider"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []Role {
	return []Role{RoleTourist, RoleGuide, RoleAdmin, RoleProvider}
}

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

// roleAliases maps legacy backend spellings onto canonical roles.
var roleAliases = map[string]Role{
	"customer":      RoleTourist,
	"user":          RoleTourist,
	"traveler":      RoleTourist,
	"company":       RoleProvider,
	"operator":      RoleProvider,
	"administrator": RoleAdmin,
	"superadmin":    RoleAdmin,
	"super_admin":   RoleAdmin,
}

// NormalizeRole lower-cases raw, resolves aliases and falls back to tourist.
func NormalizeRole(raw string) Role {
	r := strings.ToLower(strings.TrimSpace(raw))
	if IsValidRole(r) {
		return Role(r)
	}
	if alias, ok := roleAliases[r]; ok {
		return alias
	}
	return RoleTourist
}
