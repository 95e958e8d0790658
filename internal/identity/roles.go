package identity

import "strings"

// Role is the closed set of application roles a portal user can hold.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
)

// MapAffiliationsToRoles derives application roles from the free-text
// affiliation strings released by the IdP. Matching is case-insensitive
// substring matching; different institutions emit different casings and
// spellings, so exact matching would be too brittle. Each affiliation
// contributes at most one role, and the branch order is significant: a
// string containing both "faculty" and "staff" counts as instructor.
// Empty input, or input where nothing matches, yields {student}.
// The result is de-duplicated and keeps insertion order.
func MapAffiliationsToRoles(affiliations []string) []Role {
	var roles []Role
	seen := map[Role]bool{}
	add := func(r Role) {
		if !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}

	for _, a := range affiliations {
		s := strings.ToLower(a)
		switch {
		case strings.Contains(s, "faculty") || strings.Contains(s, "instructor"):
			add(RoleInstructor)
		case strings.Contains(s, "staff"):
			add(RoleStaff)
		case strings.Contains(s, "admin") || strings.Contains(s, "administrator"):
			add(RoleAdmin)
		case strings.Contains(s, "student"):
			add(RoleStudent)
		}
	}

	if len(roles) == 0 {
		roles = append(roles, RoleStudent)
	}
	return roles
}

// RoleStrings converts roles for serialization into session claims.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
