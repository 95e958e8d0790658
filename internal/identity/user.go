package identity

// User is an authenticated portal user: the canonical profile plus the
// roles derived from its affiliations. This is the value handed across
// the validator boundary on success.
type User struct {
	Profile Profile
	Roles   []Role
}
