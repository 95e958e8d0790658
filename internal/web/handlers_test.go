package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusportal/sso-gateway/internal/config"
	"campusportal/sso-gateway/internal/crypto"
	"campusportal/sso-gateway/internal/metrics"
	"campusportal/sso-gateway/internal/saml"
	"campusportal/sso-gateway/internal/samltest"
	"campusportal/sso-gateway/internal/session"
)

const (
	testIdPEntityID = "https://idp.test"
	testEntryPoint  = "https://idp.test/sso"
	testSPIssuer    = "https://portal.test/shibboleth"
	testCallback    = "https://portal.test/saml/acs"
)

func testRouter(t *testing.T) (http.Handler, *samltest.IdP) {
	t.Helper()

	idp, err := samltest.New(testIdPEntityID)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.Server{Listen: ":0", ExternalURL: "https://portal.test"},
		IdP: config.IdP{
			EntryPoint:  testEntryPoint,
			Issuer:      testIdPEntityID,
			Certificate: idp.CertificateBase64(),
		},
		SP: config.SP{
			Issuer:      testSPIssuer,
			CallbackURL: testCallback,
		},
		Security: config.Security{
			WantAssertionsSigned: true,
			WantResponseSigned:   true,
		},
		Session: config.Session{
			CookieName: "portal_session",
			Secret:     "test-secret",
			TTLSeconds: 3600,
		},
		Login: config.Login{
			DefaultRedirect: "/",
			ErrorPath:       "/login",
		},
	}

	ks, err := crypto.NewKeyStore(cfg)
	require.NoError(t, err)
	svc, err := saml.NewService(cfg, ks, zap.NewNop())
	require.NoError(t, err)
	sessions := session.NewIssuer(cfg.Session, cfg.SP.Issuer)
	rec := metrics.NewRecorderWithRegistry(prometheus.NewRegistry())

	router := NewRouter(
		func() *config.Config { return cfg },
		func() *saml.Service { return svc },
		func() *session.Issuer { return sessions },
		rec,
		zap.NewNop(),
	)
	return router, idp
}

func TestLoginRedirect(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/saml/login?return=/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, testEntryPoint), "redirects to the IdP: %s", loc)

	u, err := url.Parse(loc)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", u.Query().Get("RelayState"))
	assert.NotEmpty(t, u.Query().Get("SAMLRequest"))
}

func TestLoginRedirect_UnsafeReturnFallsBack(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/saml/login?return=https://evil.test/phish", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", u.Query().Get("RelayState"))
}

func TestACS_MissingSAMLResponse(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/saml/acs", strings.NewReader("RelayState=/dashboard"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "SAML_RESPONSE_INVALID", u.Query().Get("error"))
}

func TestACS_Success(t *testing.T) {
	router, idp := testRouter(t)

	encoded, err := idp.SignedResponse(samltest.ResponseOpts{
		ACSURL:   testCallback,
		Audience: testSPIssuer,
		NameID:   "jdoe@ucsc.edu",
		Attributes: map[string][]string{
			"uid":                  {"jdoe"},
			"mail":                 {"jdoe@ucsc.edu"},
			"eduPersonAffiliation": {"staff"},
		},
	})
	require.NoError(t, err)

	form := url.Values{
		"SAMLResponse": {encoded},
		"RelayState":   {"/dashboard"},
	}
	req := httptest.NewRequest(http.MethodPost, "/saml/acs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", u.Path)
	assert.Equal(t, "success", u.Query().Get("auth"))
	assert.NotEmpty(t, u.Query().Get("token"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "portal_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestACS_InvalidSignature(t *testing.T) {
	router, idp := testRouter(t)

	encoded, err := idp.SignedResponse(samltest.ResponseOpts{
		ACSURL:   testCallback,
		Audience: testSPIssuer,
		NameID:   "jdoe@ucsc.edu",
		Attributes: map[string][]string{
			"uid": {"jdoe"},
		},
	})
	require.NoError(t, err)
	tampered, err := samltest.Tamper(encoded, "jdoe", "mallory")
	require.NoError(t, err)

	form := url.Values{"SAMLResponse": {tampered}}
	req := httptest.NewRequest(http.MethodPost, "/saml/acs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "SAML_SIGNATURE_INVALID", u.Query().Get("error"))
}

func TestMetadataEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/saml/metadata", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/samlmetadata+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), testSPIssuer)
	assert.Contains(t, w.Body.String(), testCallback)
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestSafeRelayPath(t *testing.T) {
	tests := []struct {
		relay string
		want  string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"/courses?term=fall", "/courses?term=fall"},
		{"https://evil.test/phish", "/"},
		{"//evil.test/phish", "/"},
		{"dashboard", "/"},
		{"/ok\\..\\bad", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeRelayPath(tt.relay, "/"), "relay %q", tt.relay)
	}
}

func TestAppendQuery(t *testing.T) {
	got := appendQuery("/courses?term=fall", url.Values{"auth": {"success"}})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "fall", u.Query().Get("term"))
	assert.Equal(t, "success", u.Query().Get("auth"))
}
