package saml

import "encoding/xml"

// Metadata renders the SP EntityDescriptor for registration with an IdP:
// entity ID, assertion consumer service, NameID format, and the signing
// certificate when one is configured.
func (s *Service) Metadata() ([]byte, error) {
	meta, err := s.sp.Metadata()
	if err != nil {
		return nil, authErr(ErrCodeIdPError, "build sp metadata", err)
	}
	buf, err := xml.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, authErr(ErrCodeIdPError, "marshal sp metadata", err)
	}
	return append([]byte(xml.Header), buf...), nil
}
