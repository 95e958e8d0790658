package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrs(kv map[string]string) map[string][]string {
	out := make(map[string][]string, len(kv))
	for k, v := range kv {
		out[k] = []string{v}
	}
	return out
}

func TestNormalize_ShortAttributeNames(t *testing.T) {
	raw := RawProfile{
		NameID: "jdoe@ucsc.edu",
		Attributes: map[string][]string{
			"uid":                  {"jdoe"},
			"mail":                 {"jdoe@ucsc.edu"},
			"givenName":            {"Jane"},
			"sn":                   {"Doe"},
			"eduPersonAffiliation": {"member", "student"},
		},
	}

	p := Normalize(raw)
	require.True(t, p.Valid(raw))
	assert.Equal(t, "jdoe", p.SubjectID)
	assert.Equal(t, "jdoe@ucsc.edu", p.Email)
	assert.Equal(t, "Jane Doe", p.DisplayName)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, []string{"member", "student"}, p.Affiliations)
	assert.Equal(t, []Role{RoleStudent}, MapAffiliationsToRoles(p.Affiliations))
}

func TestNormalize_OIDAttributeNames(t *testing.T) {
	raw := RawProfile{
		NameID: "_transient-id",
		Attributes: map[string][]string{
			"urn:oid:0.9.2342.19200300.100.1.1": {"jdoe"},
			"urn:oid:0.9.2342.19200300.100.1.3": {"jdoe@ucsc.edu"},
			"urn:oid:2.5.4.42":                  {"Jane"},
			"urn:oid:2.5.4.4":                   {"Doe"},
			"urn:oid:1.3.6.1.4.1.5923.1.1.1.1":  {"faculty"},
		},
	}

	p := Normalize(raw)
	assert.Equal(t, "jdoe", p.SubjectID)
	assert.Equal(t, "jdoe@ucsc.edu", p.Email)
	assert.Equal(t, []string{"faculty"}, p.Affiliations)
}

func TestNormalize_CandidateOrder(t *testing.T) {
	// The plain name wins over the OID form, which wins over the short form.
	raw := RawProfile{
		Attributes: map[string][]string{
			"email":                             {"plain@ucsc.edu"},
			"urn:oid:0.9.2342.19200300.100.1.3": {"oid@ucsc.edu"},
			"mail":                              {"short@ucsc.edu"},
			"uid":                               {"jdoe"},
		},
	}
	p := Normalize(raw)
	assert.Equal(t, "plain@ucsc.edu", p.Email)
}

func TestNormalize_NameIDOnly(t *testing.T) {
	raw := RawProfile{NameID: "jdoe@ucsc.edu"}

	p := Normalize(raw)
	require.True(t, p.Valid(raw))
	assert.Equal(t, "jdoe@ucsc.edu", p.SubjectID)
	assert.Equal(t, "jdoe", p.DisplayName, "display name derives from NameID via email fallback")
	assert.Equal(t, []Role{RoleStudent}, MapAffiliationsToRoles(p.Affiliations))
}

func TestNormalize_DisplayNameFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		raw  RawProfile
		want string
	}{
		{
			name: "explicit displayName wins",
			raw: RawProfile{Attributes: attrs(map[string]string{
				"displayName": "Dr. Jane Doe",
				"givenName":   "Jane",
				"sn":          "Doe",
			})},
			want: "Dr. Jane Doe",
		},
		{
			name: "cn as alternate short form",
			raw:  RawProfile{Attributes: attrs(map[string]string{"cn": "Jane D"})},
			want: "Jane D",
		},
		{
			name: "first and last joined",
			raw: RawProfile{Attributes: attrs(map[string]string{
				"givenName": "Jane",
				"sn":        "Doe",
			})},
			want: "Jane Doe",
		},
		{
			name: "last name only",
			raw:  RawProfile{Attributes: attrs(map[string]string{"sn": "Doe"})},
			want: "Doe",
		},
		{
			name: "email local part",
			raw:  RawProfile{Attributes: attrs(map[string]string{"mail": "jdoe@ucsc.edu"})},
			want: "jdoe",
		},
		{
			name: "nameID as final fallback",
			raw:  RawProfile{NameID: "_opaque"},
			want: "_opaque",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw).DisplayName)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := RawProfile{
		NameID: "jdoe@ucsc.edu",
		Attributes: map[string][]string{
			"uid":  {"jdoe"},
			"mail": {"jdoe@ucsc.edu"},
		},
	}
	p1 := Normalize(raw)

	// Re-normalizing a raw bag rebuilt from canonical keys round-trips
	// subjectId and email unchanged.
	p2 := Normalize(RawProfile{
		NameID: raw.NameID,
		Attributes: map[string][]string{
			"uid":   {p1.SubjectID},
			"email": {p1.Email},
		},
	})
	assert.Equal(t, p1.SubjectID, p2.SubjectID)
	assert.Equal(t, p1.Email, p2.Email)
}

func TestProfile_Invalid(t *testing.T) {
	raw := RawProfile{Attributes: attrs(map[string]string{"givenName": "Jane"})}
	p := Normalize(raw)
	assert.False(t, p.Valid(raw), "no uid, nameID, or email means no usable identity")
}

func TestNormalize_EmptyValuesSkipped(t *testing.T) {
	raw := RawProfile{
		NameID: "jdoe@ucsc.edu",
		Attributes: map[string][]string{
			"email": {""},
			"mail":  {"jdoe@ucsc.edu"},
		},
	}
	p := Normalize(raw)
	assert.Equal(t, "jdoe@ucsc.edu", p.Email, "empty candidate values are skipped")
}
