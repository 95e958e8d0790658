package saml

import (
	"time"
)

// BuildLoginURL constructs a fresh AuthnRequest and encodes it for the
// HTTP-Redirect binding (deflate, base64, URL-encode), returning the full
// IdP redirect URL and the generated request ID. relayState is an opaque
// pass-through value, typically the post-login return path; it is appended
// as the RelayState query parameter when non-empty and never interpreted
// here. When correlation is enabled the request ID is registered with the
// cache so the matching response can be checked later.
func (s *Service) BuildLoginURL(relayState string) (string, string, error) {
	doc, err := s.sp.BuildAuthRequestDocument()
	if err != nil {
		return "", "", authErr(ErrCodeIdPError, "build authn request", err)
	}
	requestID := doc.Root().SelectAttrValue("ID", "")

	loginURL, err := s.sp.BuildAuthURLFromDocument(relayState, doc)
	if err != nil {
		return "", "", authErr(ErrCodeIdPError, "encode authn request", err)
	}

	if s.requests != nil && requestID != "" {
		s.requests.Store(requestID, time.Now().Add(s.requests.TTL()))
	}

	return loginURL, requestID, nil
}
