// Package saml implements the service-provider side of the SAML 2.0 web
// browser SSO profile: building AuthnRequest redirects, validating POSTed
// responses, and publishing SP metadata.
package saml

import (
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	"go.uber.org/zap"

	"campusportal/sso-gateway/internal/config"
	"campusportal/sso-gateway/internal/crypto"
)

// Service performs the two SP operations the rest of the gateway needs:
// BuildLoginURL and ValidateResponse. It is safe for concurrent use; all
// state is immutable after construction except the optional request cache,
// which synchronizes internally.
type Service struct {
	cfg      *config.Config
	keys     *crypto.KeyStore
	sp       *saml2.SAMLServiceProvider
	requests *RequestCache
	log      *zap.Logger
}

// NewService wires a Service from validated configuration. The request
// cache is only attached when InResponseTo correlation is enabled; the
// default posture is stateless validation.
func NewService(cfg *config.Config, ks *crypto.KeyStore, log *zap.Logger) (*Service, error) {
	enforce := cfg.Security.WantAssertionsSigned || cfg.Security.WantResponseSigned
	if enforce && !ks.HasIdPCert() {
		return nil, authErr(ErrCodeConfig, "signature enforcement requires an IdP certificate", nil)
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.IdP.EntryPoint,
		IdentityProviderIssuer:      cfg.IdP.Issuer,
		ServiceProviderIssuer:       cfg.SP.Issuer,
		AssertionConsumerServiceURL: cfg.SP.CallbackURL,
		AudienceURI:                 cfg.SP.Issuer,
		IDPCertificateStore:         ks.IdPCertStore(),
		SPKeyStore:                  ks.SPKeyStore(),
		NameIdFormat:                saml2.NameIdFormatUnspecified,
		SignAuthnRequests:           cfg.SP.SignRequests && ks.CanSignRequests(),
		SkipSignatureValidation:     !enforce,
		// An assertion with no attribute statement is still a login; the
		// normalizer falls back to NameID-derived identity.
		AllowMissingAttributes: true,
		// RequestedAuthnContext stays unset: accept whatever authentication
		// method the IdP offers. Campus IdPs are heterogeneous enough that
		// constraining the context breaks logins.
	}

	s := &Service{cfg: cfg, keys: ks, sp: sp, log: log}

	if !enforce {
		// Security-relevant relaxation; never skip silently.
		s.log.Warn("signature validation disabled; responses will be accepted unverified",
			zap.Bool("want_assertions_signed", cfg.Security.WantAssertionsSigned),
			zap.Bool("want_response_signed", cfg.Security.WantResponseSigned))
	}

	if cfg.Security.ValidateInResponseTo {
		ttl := time.Duration(cfg.Security.RequestTTLSeconds) * time.Second
		s.requests = NewRequestCache(ttl)
	}

	return s, nil
}

// CorrelationEnabled reports whether InResponseTo correlation is on.
func (s *Service) CorrelationEnabled() bool { return s.requests != nil }

// SweepRequests drops expired entries from the correlation cache, if any.
func (s *Service) SweepRequests() {
	if s.requests != nil {
		s.requests.Sweep()
	}
}
