// Package cli implements the gateway's keygen subcommand: it generates a
// self-signed RSA keypair for AuthnRequest signing and writes it into the
// YAML configuration's sp.signing block.
package cli

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"campusportal/sso-gateway/internal/config"
)

type keygenOpts struct {
	ConfigPath string
	Bits       int
	Days       int
	CN         string
	Org        string
}

func RunKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	var ko keygenOpts
	fs.StringVar(&ko.ConfigPath, "config", "config.yaml", "path to config yaml")
	fs.IntVar(&ko.Bits, "bits", 3072, "RSA key size: 2048|3072|4096")
	fs.IntVar(&ko.Days, "days", 825, "certificate validity in days")
	fs.StringVar(&ko.CN, "cn", "sso.example.edu", "certificate CN")
	fs.StringVar(&ko.Org, "org", "Example University", "certificate O")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch ko.Bits {
	case 2048, 3072, 4096:
	default:
		return fmt.Errorf("unsupported key size %d", ko.Bits)
	}

	raw, err := os.ReadFile(ko.ConfigPath)
	if err != nil {
		return err
	}
	var cfg config.Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	certPEM, keyPEM, notAfter, err := genSelfSigned(ko)
	if err != nil {
		return err
	}

	cfg.SP.Signing = config.Signing{
		CertPEM: string(certPEM),
		KeyPEM:  string(keyPEM),
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(ko.ConfigPath, out, 0o600); err != nil {
		return err
	}

	fmt.Printf("OK: wrote sp signing keypair (bits=%d, not_after=%s) to %s\n",
		ko.Bits, notAfter.UTC().Format(time.RFC3339), ko.ConfigPath)
	return nil
}

func genSelfSigned(ko keygenOpts) (certPEM, keyPEM []byte, notAfter time.Time, err error) {
	nb := time.Now().Add(-5 * time.Minute)
	na := nb.Add(time.Duration(ko.Days) * 24 * time.Hour)

	key, err := rsa.GenerateKey(rand.Reader, ko.Bits)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	serial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         ko.CN,
			Organization:       []string{ko.Org},
			OrganizationalUnit: []string{"SAML Signing"},
		},
		NotBefore:             nb,
		NotAfter:              na,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, na, nil
}
