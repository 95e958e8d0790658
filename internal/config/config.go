package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if c.IdP.Certificate != "" {
		canonical, err := NormalizeCertificate(c.IdP.Certificate)
		if err != nil {
			return nil, fmt.Errorf("idp.certificate: %w", err)
		}
		c.IdP.Certificate = canonical
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Session.CookieName == "" {
		c.Session.CookieName = "portal_session"
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = 8 * 3600
	}
	if c.Security.RequestTTLSeconds <= 0 {
		c.Security.RequestTTLSeconds = 600
	}
	if c.Login.DefaultRedirect == "" {
		c.Login.DefaultRedirect = "/"
	}
	if c.Login.ErrorPath == "" {
		c.Login.ErrorPath = "/login"
	}
}

// Validate fails fast on configurations the gateway must not serve with.
func (c *Config) Validate() error {
	if c.Server.ExternalURL == "" || c.Server.Listen == "" {
		return fmt.Errorf("server.external_url and server.listen required")
	}
	if c.IdP.EntryPoint == "" {
		return fmt.Errorf("idp.entry_point required")
	}
	if u, err := url.Parse(c.IdP.EntryPoint); err != nil || !u.IsAbs() {
		return fmt.Errorf("idp.entry_point is not an absolute URL: %q", c.IdP.EntryPoint)
	}
	if c.SP.Issuer == "" || c.SP.CallbackURL == "" {
		return fmt.Errorf("sp.issuer and sp.callback_url required")
	}
	if u, err := url.Parse(c.SP.CallbackURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("sp.callback_url is not an absolute URL: %q", c.SP.CallbackURL)
	}
	enforce := c.Security.WantAssertionsSigned || c.Security.WantResponseSigned
	if enforce && c.IdP.Certificate == "" {
		return fmt.Errorf("signature enforcement is on but idp.certificate is empty")
	}
	if c.SP.SignRequests && (c.SP.Signing.CertPEM == "" || c.SP.Signing.KeyPEM == "") {
		return fmt.Errorf("sp.sign_requests is on but sp.signing keypair is missing")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret required (set SESSION_SECRET)")
	}
	return nil
}

// NormalizeCertificate reduces PEM or loosely formatted base64 certificate
// material to a single canonical encoding: raw base64 DER with no armor and
// no whitespace. Signature verification and metadata generation both derive
// from this value, so the stripping happens here and nowhere else.
func NormalizeCertificate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "-----BEGIN CERTIFICATE-----", "")
	s = strings.ReplaceAll(s, "-----END CERTIFICATE-----", "")
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\r', '\n':
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "", fmt.Errorf("no certificate data")
	}
	return out, nil
}
