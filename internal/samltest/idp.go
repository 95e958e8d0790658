// Package samltest is a miniature identity provider used by the gateway's
// tests: it generates a signing keypair and mints signed SAML responses so
// the validator can be exercised against real enveloped signatures instead
// of canned fixtures.
package samltest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"time"
)

// IdP holds the trust material of a simulated identity provider.
type IdP struct {
	EntityID string
	key      *rsa.PrivateKey
	cert     *x509.Certificate
}

// New creates a test IdP with a fresh 2048-bit RSA keypair and a
// self-signed certificate valid for one hour either side of now.
func New(entityID string) (*IdP, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: entityID, Organization: []string{"samltest"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	return &IdP{EntityID: entityID, key: key, cert: cert}, nil
}

// CertificatePEM returns the IdP signing certificate in PEM form, as it
// would be pasted into the gateway's configuration.
func (i *IdP) CertificatePEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: i.cert.Raw}))
}

// CertificateBase64 returns the certificate as raw base64 DER, the
// canonical form the config layer normalizes to.
func (i *IdP) CertificateBase64() string {
	return base64.StdEncoding.EncodeToString(i.cert.Raw)
}

func (i *IdP) keyPair() tls.Certificate {
	return tls.Certificate{Certificate: [][]byte{i.cert.Raw}, PrivateKey: i.key}
}
