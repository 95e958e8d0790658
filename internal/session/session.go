// Package session issues and verifies the encoded identity payload handed
// to the portal frontend after a successful SAML login. Tokens are
// stateless HS256 JWTs.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"campusportal/sso-gateway/internal/config"
	"campusportal/sso-gateway/internal/identity"
)

// ErrInvalidToken is returned for malformed, forged, or expired tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the JWT payload carried by a portal session.
type Claims struct {
	jwt.RegisteredClaims
	Email        string   `json:"email,omitempty"`
	Name         string   `json:"name,omitempty"`
	Roles        []string `json:"roles"`
	SessionIndex string   `json:"sidx,omitempty"`
}

// Issuer mints and verifies session tokens.
type Issuer struct {
	cfg    config.Session
	issuer string
	secret []byte
}

func NewIssuer(cfg config.Session, spIssuer string) *Issuer {
	return &Issuer{cfg: cfg, issuer: spIssuer, secret: []byte(cfg.Secret)}
}

// TTL is the configured session lifetime.
func (i *Issuer) TTL() time.Duration {
	return time.Duration(i.cfg.TTLSeconds) * time.Second
}

// Issue creates a signed token for an authenticated user.
func (i *Issuer) Issue(user *identity.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.Profile.SubjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL())),
		},
		Email:        user.Profile.Email,
		Name:         user.Profile.DisplayName,
		Roles:        identity.RoleStrings(user.Roles),
		SessionIndex: user.Profile.SessionIndex,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(i.issuer))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// SetCookie attaches the session token to the response.
func (i *Issuer) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     i.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   i.cfg.CookieDomain,
		MaxAge:   i.cfg.TTLSeconds,
		HttpOnly: true,
		Secure:   i.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (i *Issuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     i.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   i.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
