package main

import (
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"campusportal/sso-gateway/internal/cli"
	"campusportal/sso-gateway/internal/config"
	"campusportal/sso-gateway/internal/crypto"
	"campusportal/sso-gateway/internal/metrics"
	"campusportal/sso-gateway/internal/saml"
	"campusportal/sso-gateway/internal/session"
	"campusportal/sso-gateway/internal/web"
)

type runtimeState struct {
	mu       sync.RWMutex
	cfg      *config.Config
	sp       *saml.Service
	sessions *session.Issuer
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := cli.RunKeygen(os.Args[2:]); err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	state := &runtimeState{}
	load := func() {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
		if v := os.Getenv("SAML_IDP_CERT"); v != "" {
			canonical, err := config.NormalizeCertificate(v)
			if err != nil {
				log.Fatal("SAML_IDP_CERT", zap.Error(err))
			}
			cfg.IdP.Certificate = canonical
		}
		if v := os.Getenv("SESSION_SECRET"); v != "" {
			cfg.Session.Secret = v
		}
		if err := cfg.Validate(); err != nil {
			log.Fatal("invalid config", zap.Error(err))
		}

		ks, err := crypto.NewKeyStore(cfg)
		if err != nil {
			log.Fatal("keystore", zap.Error(err))
		}
		sp, err := saml.NewService(cfg, ks, log)
		if err != nil {
			log.Fatal("saml service", zap.Error(err))
		}
		sessions := session.NewIssuer(cfg.Session, cfg.SP.Issuer)

		state.mu.Lock()
		state.cfg, state.sp, state.sessions = cfg, sp, sessions
		state.mu.Unlock()
		log.Info("loaded config",
			zap.String("entry_point", cfg.IdP.EntryPoint),
			zap.String("sp_issuer", cfg.SP.Issuer),
			zap.Bool("correlation", sp.CorrelationEnabled()))
	}
	load()

	rec := metrics.NewRecorder()
	router := web.NewRouter(
		func() *config.Config { state.mu.RLock(); defer state.mu.RUnlock(); return state.cfg },
		func() *saml.Service { state.mu.RLock(); defer state.mu.RUnlock(); return state.sp },
		func() *session.Issuer { state.mu.RLock(); defer state.mu.RUnlock(); return state.sessions },
		rec,
		log,
	)

	go func() {
		addr := state.cfg.Server.Listen
		log.Info("listening", zap.String("addr", addr))
		log.Fatal("serve", zap.Error(http.ListenAndServe(addr, router)))
	}()

	// Sweep abandoned login attempts out of the correlation cache.
	go func() {
		for range time.Tick(time.Minute) {
			state.mu.RLock()
			sp := state.sp
			state.mu.RUnlock()
			sp.SweepRequests()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	go func() {
		for range sigc {
			load()
		}
	}()

	w, err := fsnotify.NewWatcher()
	if err == nil {
		defer w.Close()
		_ = w.Add(cfgPath)
		go func() {
			for {
				select {
				case e := <-w.Events:
					if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
						load()
					}
				case err := <-w.Errors:
					if err != nil {
						log.Warn("config watch", zap.Error(err))
					}
				}
			}
		}()
	}

	select {}
}
