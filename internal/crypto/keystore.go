package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	dsig "github.com/russellhaering/goxmldsig"

	"campusportal/sso-gateway/internal/config"
)

// KeyStore holds the trust material for one IdP relationship: the IdP
// signing certificate(s) used to verify responses, and optionally our own
// keypair used to sign AuthnRequests.
type KeyStore struct {
	idpCerts []*x509.Certificate
	signer   *tls.Certificate
}

// NewKeyStore builds a KeyStore from validated configuration. The IdP
// certificate must already be in canonical form (raw base64 DER, see
// config.NormalizeCertificate). An empty certificate yields a store with
// no trust roots, which is only acceptable when signature enforcement is
// off; config.Validate rejects the other combination at startup.
func NewKeyStore(cfg *config.Config) (*KeyStore, error) {
	ks := &KeyStore{}

	if cfg.IdP.Certificate != "" {
		der, err := base64.StdEncoding.DecodeString(cfg.IdP.Certificate)
		if err != nil {
			return nil, fmt.Errorf("idp certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("idp certificate: %w", err)
		}
		ks.idpCerts = append(ks.idpCerts, cert)
	}

	if cfg.SP.Signing.CertPEM != "" && cfg.SP.Signing.KeyPEM != "" {
		cert, priv, err := parseKeypair(cfg.SP.Signing.CertPEM, cfg.SP.Signing.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("sp signing keypair: %w", err)
		}
		ks.signer = &tls.Certificate{Certificate: [][]byte{cert.Raw}, PrivateKey: priv}
	}

	return ks, nil
}

// IdPCertStore returns the certificate store gosaml2 verifies response
// signatures against.
func (ks *KeyStore) IdPCertStore() *dsig.MemoryX509CertificateStore {
	return &dsig.MemoryX509CertificateStore{Roots: ks.idpCerts}
}

// HasIdPCert reports whether any IdP trust root is configured.
func (ks *KeyStore) HasIdPCert() bool { return len(ks.idpCerts) > 0 }

// SPKeyStore returns the key store used to sign AuthnRequests and SP
// metadata. Falls back to an ephemeral key when no keypair is configured;
// that is fine for unsigned requests since the key is never exercised for
// anything the IdP verifies.
func (ks *KeyStore) SPKeyStore() dsig.X509KeyStore {
	if ks.signer != nil {
		return dsig.TLSCertKeyStore(*ks.signer)
	}
	return dsig.RandomKeyStoreForTest()
}

// CanSignRequests reports whether a configured SP keypair is available.
func (ks *KeyStore) CanSignRequests() bool { return ks.signer != nil }

func parseKeypair(certPEM, keyPEM string) (*x509.Certificate, interface{}, error) {
	cb, _ := pem.Decode([]byte(certPEM))
	if cb == nil {
		return nil, nil, errors.New("invalid cert pem")
	}
	cert, err := x509.ParseCertificate(cb.Bytes)
	if err != nil {
		return nil, nil, err
	}
	kb, _ := pem.Decode([]byte(keyPEM))
	if kb == nil {
		return nil, nil, errors.New("invalid key pem")
	}
	priv, err := x509.ParsePKCS8PrivateKey(kb.Bytes)
	if err != nil {
		priv, err = x509.ParsePKCS1PrivateKey(kb.Bytes)
		if err != nil {
			return nil, nil, err
		}
	}
	return cert, priv, nil
}
