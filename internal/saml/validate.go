package saml

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/beevik/etree"
	saml2 "github.com/russellhaering/gosaml2"
	"go.uber.org/zap"

	"campusportal/sso-gateway/internal/identity"
)

// ValidateResponse verifies a POST-bound SAMLResponse body and extracts the
// authenticated user. Every failure terminates the attempt with a typed
// *AuthError; there are no retries and nothing here mutates shared state.
//
// The pipeline, in order: decode, signature verification (or an explicit
// logged skip), temporal-window and audience/destination conditions,
// optional InResponseTo correlation, attribute extraction, normalization,
// role mapping.
func (s *Service) ValidateResponse(rawBody string) (*identity.User, error) {
	if strings.TrimSpace(rawBody) == "" {
		return nil, authErr(ErrCodeResponseInvalid, "empty SAMLResponse", nil)
	}

	doc, err := decodeResponseDocument(rawBody)
	if err != nil {
		return nil, authErr(ErrCodeResponseInvalid, "undecodable SAMLResponse", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, authErr(ErrCodeResponseInvalid, "empty SAML document", nil)
	}

	// Destination guards against a response replayed to a different service.
	if dest := root.SelectAttrValue("Destination", ""); dest != "" && dest != s.cfg.SP.CallbackURL {
		s.log.Info("response destination mismatch",
			zap.String("destination", dest),
			zap.String("callback_url", s.cfg.SP.CallbackURL))
		return nil, authErr(ErrCodeAudienceMismatch, "response destination does not match callback URL", nil)
	}

	if s.requests != nil {
		inResponseTo := root.SelectAttrValue("InResponseTo", "")
		if inResponseTo == "" || !s.requests.Valid(inResponseTo) {
			return nil, authErr(ErrCodeResponseInvalid, "InResponseTo does not match an outstanding request", nil)
		}
	}

	info, err := s.sp.RetrieveAssertionInfo(rawBody)
	if err != nil {
		return nil, s.classify(err)
	}

	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return nil, authErr(ErrCodeAssertionExpired, "assertion outside its validity window", nil)
		}
		if info.WarningInfo.NotInAudience {
			return nil, authErr(ErrCodeAudienceMismatch, "assertion audience does not include this SP", nil)
		}
	}

	raw := rawProfileFromAssertion(info)
	if el := root.FindElement(".//NameID"); el != nil {
		raw.NameIDFormat = el.SelectAttrValue("Format", "")
	}
	if raw.NameID == "" && len(raw.Attributes) == 0 {
		return nil, authErr(ErrCodeResponseInvalid, "assertion carries no subject or attributes", nil)
	}

	profile := identity.Normalize(raw)
	if !profile.Valid(raw) {
		return nil, authErr(ErrCodeMissingAttributes, "no subject identifier derivable from assertion", nil)
	}

	user := &identity.User{
		Profile: profile,
		Roles:   identity.MapAffiliationsToRoles(profile.Affiliations),
	}

	s.log.Info("saml login validated",
		zap.String("subject", profile.SubjectID),
		zap.Strings("roles", identity.RoleStrings(user.Roles)))

	return user, nil
}

// classify maps gosaml2/goxmldsig failures onto the gateway's error
// taxonomy so callers can tell a bad response from our own processing
// faults.
func (s *Service) classify(err error) *AuthError {
	var invalid saml2.ErrInvalidValue
	if errors.As(err, &invalid) {
		switch {
		case invalid.Reason == saml2.ReasonExpired:
			return authErr(ErrCodeAssertionExpired, "assertion outside its validity window", err)
		case invalid.Key == "Destination" || invalid.Key == "Recipient" || invalid.Key == "Audience":
			return authErr(ErrCodeAudienceMismatch, "response addressed to a different service", err)
		default:
			return authErr(ErrCodeResponseInvalid, "response failed validation", err)
		}
	}

	var missing saml2.ErrMissingElement
	if errors.As(err, &missing) {
		if strings.Contains(strings.ToLower(missing.Tag), "signature") {
			return authErr(ErrCodeSignatureInvalid, "required signature missing", err)
		}
		return authErr(ErrCodeResponseInvalid, "response missing required element", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "signature") || strings.Contains(msg, "certificate") ||
		strings.Contains(msg, "digest") || strings.Contains(msg, "cert ") {
		return authErr(ErrCodeSignatureInvalid, "signature verification failed", err)
	}
	if strings.Contains(msg, "expired") {
		return authErr(ErrCodeAssertionExpired, "assertion outside its validity window", err)
	}
	return authErr(ErrCodeResponseInvalid, "response failed validation", err)
}

// decodeResponseDocument base64-decodes the POSTed field and parses it as
// XML. Lenient about whitespace; some IdPs line-wrap the base64 payload.
func decodeResponseDocument(rawBody string) (*etree.Document, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, rawBody)

	xmlBytes, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, err
	}
	return doc, nil
}

// rawProfileFromAssertion flattens the gosaml2 attribute values into the
// untyped bag the normalizer consumes. Attributes are indexed under both
// their Name (often an urn:oid form) and FriendlyName so the normalizer's
// candidate lists can match either spelling.
func rawProfileFromAssertion(info *saml2.AssertionInfo) identity.RawProfile {
	raw := identity.RawProfile{
		NameID:       info.NameID,
		SessionIndex: info.SessionIndex,
		Attributes:   make(map[string][]string, len(info.Values)),
	}

	for _, attr := range info.Values {
		vals := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			vals = append(vals, v.Value)
		}
		if attr.Name != "" {
			raw.Attributes[attr.Name] = append(raw.Attributes[attr.Name], vals...)
		}
		if attr.FriendlyName != "" && attr.FriendlyName != attr.Name {
			raw.Attributes[attr.FriendlyName] = append(raw.Attributes[attr.FriendlyName], vals...)
		}
	}

	return raw
}
