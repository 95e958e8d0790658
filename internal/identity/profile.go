// Package identity turns the loosely typed attribute bag released by a
// campus IdP into a canonical profile and a set of application roles.
package identity

import "strings"

// Standard LDAP/eduPerson attribute OIDs. Shibboleth deployments commonly
// release attributes under these names instead of the friendly ones.
const (
	oidUID            = "urn:oid:0.9.2342.19200300.100.1.1"
	oidMail           = "urn:oid:0.9.2342.19200300.100.1.3"
	oidDisplayName    = "urn:oid:2.16.840.1.113730.3.1.241"
	oidGivenName      = "urn:oid:2.5.4.42"
	oidSurname        = "urn:oid:2.5.4.4"
	oidEduAffiliation = "urn:oid:1.3.6.1.4.1.5923.1.1.1.1"
)

// RawProfile is the attribute bag as delivered by the IdP, plus the subject
// fields lifted from the assertion itself. Values are kept as lists; single
// valued attributes are one-element lists.
type RawProfile struct {
	NameID       string
	NameIDFormat string
	SessionIndex string
	Attributes   map[string][]string
}

// Profile is the canonical identity derived from a RawProfile.
type Profile struct {
	SubjectID    string
	Email        string
	DisplayName  string
	FirstName    string
	LastName     string
	Affiliations []string
	SessionIndex string
}

// Valid reports whether a profile normalized from raw carries enough
// identity to act on: a subject identifier plus at least one of email or
// NameID. SubjectID already falls back to NameID, so an empty SubjectID
// means the assertion had no usable identifier at all.
func (p Profile) Valid(raw RawProfile) bool {
	return p.SubjectID != "" && (p.Email != "" || raw.NameID != "")
}

func (r RawProfile) first(keys ...string) string {
	for _, k := range keys {
		for _, v := range r.Attributes[k] {
			if v != "" {
				return v
			}
		}
	}
	return ""
}

func (r RawProfile) list(keys ...string) []string {
	for _, k := range keys {
		vals := r.Attributes[k]
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Normalize resolves each canonical field from an ordered list of candidate
// source attributes: the plain name first, then the OID form, then any
// alternate short form. The candidate order is load-bearing; it decides
// what wins when an IdP releases several spellings of the same attribute.
func Normalize(raw RawProfile) Profile {
	p := Profile{
		Email:        raw.first("email", oidMail, "mail"),
		DisplayName:  raw.first("displayName", oidDisplayName, "cn"),
		FirstName:    raw.first("firstName", "givenName", oidGivenName),
		LastName:     raw.first("lastName", "sn", oidSurname),
		SubjectID:    raw.first("uid", oidUID),
		Affiliations: raw.list("eduPersonAffiliation", oidEduAffiliation),
		SessionIndex: raw.SessionIndex,
	}
	if p.SubjectID == "" {
		p.SubjectID = raw.NameID
	}
	if p.DisplayName == "" {
		p.DisplayName = deriveDisplayName(p, raw.NameID)
	}
	return p
}

// deriveDisplayName is the fallback chain for incomplete attribute release:
// first+last, then the local part of the email address, then the NameID.
func deriveDisplayName(p Profile, nameID string) string {
	parts := make([]string, 0, 2)
	if p.FirstName != "" {
		parts = append(parts, p.FirstName)
	}
	if p.LastName != "" {
		parts = append(parts, p.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if p.Email != "" {
		if i := strings.Index(p.Email, "@"); i > 0 {
			return p.Email[:i]
		}
		return p.Email
	}
	return nameID
}
