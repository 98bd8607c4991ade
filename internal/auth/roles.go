package auth

import "strings"

// Role is the access level carried in a token.
type Role string

// viewer reads health and change history, operator requests configuration
// changes and exports, admin runs maintenance jobs.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole parses a role claim, ignoring case and surrounding space.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants required. Unknown roles grant nothing.
func RoleAtLeast(role Role, required Role) bool {
	rank, ok := roleRanks[role]
	return ok && rank >= roleRanks[required]
}
