// Package web exposes the gateway's HTTP surface: login initiation, the
// assertion consumer service, SP metadata, and operational endpoints.
package web

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campusportal/sso-gateway/internal/config"
	"campusportal/sso-gateway/internal/metrics"
	"campusportal/sso-gateway/internal/saml"
	"campusportal/sso-gateway/internal/session"
)

// NewRouter builds the gateway router. Component getters return the
// currently loaded instances so config reloads swap cleanly underneath
// in-flight requests.
func NewRouter(
	getCfg func() *config.Config,
	getSP func() *saml.Service,
	getSessions func() *session.Issuer,
	rec *metrics.Recorder,
	log *zap.Logger,
) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	if origins := getCfg().CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowCredentials: true,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/saml/metadata", func(w http.ResponseWriter, _ *http.Request) {
		buf, err := getSP().Metadata()
		if err != nil {
			log.Error("render sp metadata", zap.Error(err))
			http.Error(w, "metadata unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/samlmetadata+xml")
		_, _ = w.Write(buf)
	})

	r.Get("/saml/login", func(w http.ResponseWriter, req *http.Request) {
		cfg := getCfg()
		relay := safeRelayPath(req.URL.Query().Get("return"), cfg.Login.DefaultRedirect)

		loginURL, requestID, err := getSP().BuildLoginURL(relay)
		if err != nil {
			log.Error("build login redirect", zap.Error(err))
			redirectError(w, req, cfg, saml.CodeOf(err))
			return
		}

		rec.LoginStarted()
		log.Info("login initiated",
			zap.String("request_id", requestID),
			zap.String("relay", relay))
		http.Redirect(w, req, loginURL, http.StatusFound)
	})

	r.Post("/saml/acs", func(w http.ResponseWriter, req *http.Request) {
		cfg := getCfg()
		rawResponse := req.FormValue("SAMLResponse")
		if rawResponse == "" {
			rec.ValidationResult(saml.ErrCodeResponseInvalid.String())
			log.Info("acs post missing SAMLResponse field")
			redirectError(w, req, cfg, saml.ErrCodeResponseInvalid)
			return
		}

		user, err := getSP().ValidateResponse(rawResponse)
		if err != nil {
			code := saml.CodeOf(err)
			rec.ValidationResult(code.String())
			// Full detail stays server-side; the browser only sees the code.
			log.Warn("saml response rejected", zap.String("code", code.String()), zap.Error(err))
			redirectError(w, req, cfg, code)
			return
		}
		rec.ValidationResult("success")

		token, err := getSessions().Issue(user)
		if err != nil {
			log.Error("issue session token", zap.Error(err))
			redirectError(w, req, cfg, saml.ErrCodeIdPError)
			return
		}
		rec.SessionIssued()
		getSessions().SetCookie(w, token)

		relay := safeRelayPath(req.FormValue("RelayState"), cfg.Login.DefaultRedirect)
		dest := appendQuery(relay, url.Values{
			"auth":  {"success"},
			"token": {token},
		})
		http.Redirect(w, req, dest, http.StatusFound)
	})

	return r
}

func redirectError(w http.ResponseWriter, req *http.Request, cfg *config.Config, code saml.ErrorCode) {
	dest := appendQuery(cfg.Login.ErrorPath, url.Values{"error": {code.String()}})
	http.Redirect(w, req, dest, http.StatusFound)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			log.Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()))
		})
	}
}
