package config

type Server struct {
	Listen      string `yaml:"listen"`
	ExternalURL string `yaml:"external_url"`
}

type IdP struct {
	// EntryPoint is the IdP SSO endpoint the browser is redirected to.
	EntryPoint string `yaml:"entry_point"`
	// Issuer is the IdP entity ID. Optional.
	Issuer string `yaml:"issuer"`
	// Certificate is the IdP signing certificate, PEM or raw base64 DER.
	// Canonicalized once at load time; downstream consumers only ever
	// see the canonical form.
	Certificate string `yaml:"certificate"`
}

type Signing struct {
	CertPEM string `yaml:"cert_pem"`
	KeyPEM  string `yaml:"key_pem"`
}

type SP struct {
	Issuer       string  `yaml:"issuer"`
	CallbackURL  string  `yaml:"callback_url"`
	SignRequests bool    `yaml:"sign_requests"`
	Signing      Signing `yaml:"signing"`
}

type Security struct {
	WantAssertionsSigned bool `yaml:"want_assertions_signed"`
	WantResponseSigned   bool `yaml:"want_response_signed"`
	ValidateInResponseTo bool `yaml:"validate_in_response_to"`
	RequestTTLSeconds    int  `yaml:"request_ttl_seconds"`
}

type Session struct {
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`
	CookieDomain string `yaml:"cookie_domain"`
	Secret       string `yaml:"-"`
	TTLSeconds   int    `yaml:"ttl_seconds"`
}

type Login struct {
	DefaultRedirect string `yaml:"default_redirect"`
	ErrorPath       string `yaml:"error_path"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	IdP      IdP      `yaml:"idp"`
	SP       SP       `yaml:"sp"`
	Security Security `yaml:"security"`
	Session  Session  `yaml:"session"`
	Login    Login    `yaml:"login"`
	CORS     CORS     `yaml:"cors"`
}
