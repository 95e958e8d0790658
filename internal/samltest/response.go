package samltest

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	dsig "github.com/russellhaering/goxmldsig"
)

const (
	subjectConfirmationMethodBearer = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
	nameIDFormatEntity              = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	authnContextPasswordProtected   = "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"
	attrNameFormatURI               = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
)

// ResponseOpts controls the shape of a minted response. Zero values
// produce a currently valid, fully signed response.
type ResponseOpts struct {
	ACSURL       string
	Audience     string
	NameID       string
	InResponseTo string
	SessionIndex string
	Attributes   map[string][]string

	// NotBefore/NotOnOrAfter offsets from now. Defaults: -1m / +5m.
	NotBeforeOffset    time.Duration
	NotOnOrAfterOffset time.Duration

	SkipAssertionSignature bool
	SkipResponseSignature  bool
}

// SignedResponse builds a SAML Response per opts, signs it with the test
// IdP's key, and returns it base64-encoded as an IdP would POST it.
func (i *IdP) SignedResponse(opts ResponseOpts) (string, error) {
	xmlBytes, err := i.ResponseXML(opts)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(xmlBytes), nil
}

// ResponseXML is SignedResponse without the final base64 step.
func (i *IdP) ResponseXML(opts ResponseOpts) ([]byte, error) {
	now := saml.TimeNow()
	notBefore := opts.NotBeforeOffset
	if notBefore == 0 {
		notBefore = -time.Minute
	}
	notOnOrAfter := opts.NotOnOrAfterOffset
	if notOnOrAfter == 0 {
		notOnOrAfter = 5 * time.Minute
	}

	assertionID, err := newSAMLID()
	if err != nil {
		return nil, err
	}
	responseID, err := newSAMLID()
	if err != nil {
		return nil, err
	}
	sessionIndex := opts.SessionIndex
	if sessionIndex == "" {
		sessionIndex = responseID
	}

	assertion := &saml.Assertion{
		ID:           assertionID,
		IssueInstant: now,
		Version:      "2.0",
		Issuer: saml.Issuer{
			Format: nameIDFormatEntity,
			Value:  i.EntityID,
		},
		Subject: &saml.Subject{
			NameID: &saml.NameID{
				Format: string(saml.UnspecifiedNameIDFormat),
				Value:  opts.NameID,
			},
			SubjectConfirmations: []saml.SubjectConfirmation{
				{
					Method: subjectConfirmationMethodBearer,
					SubjectConfirmationData: &saml.SubjectConfirmationData{
						InResponseTo: opts.InResponseTo,
						NotOnOrAfter: now.Add(notOnOrAfter),
						Recipient:    opts.ACSURL,
					},
				},
			},
		},
		Conditions: &saml.Conditions{
			NotBefore:    now.Add(notBefore),
			NotOnOrAfter: now.Add(notOnOrAfter),
			AudienceRestrictions: []saml.AudienceRestriction{
				{Audience: saml.Audience{Value: opts.Audience}},
			},
		},
		AuthnStatements: []saml.AuthnStatement{
			{
				AuthnInstant: now,
				SessionIndex: sessionIndex,
				AuthnContext: saml.AuthnContext{
					AuthnContextClassRef: &saml.AuthnContextClassRef{Value: authnContextPasswordProtected},
				},
			},
		},
		AttributeStatements: []saml.AttributeStatement{
			{Attributes: toSAMLAttributes(opts.Attributes)},
		},
	}

	resp := &saml.Response{
		ID:           responseID,
		Version:      "2.0",
		IssueInstant: now,
		InResponseTo: opts.InResponseTo,
		Destination:  opts.ACSURL,
		Issuer: &saml.Issuer{
			Format: nameIDFormatEntity,
			Value:  i.EntityID,
		},
		Status: saml.Status{
			StatusCode: saml.StatusCode{Value: saml.StatusSuccess},
		},
		Assertion: assertion,
	}

	if !opts.SkipAssertionSignature {
		if err := i.signAssertion(resp); err != nil {
			return nil, err
		}
	}
	if !opts.SkipResponseSignature {
		if err := i.signResponse(resp); err != nil {
			return nil, err
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(resp.Element())
	return doc.WriteToBytes()
}

// Tamper flips an attribute inside a signed, base64-encoded response so
// the digest no longer matches, without breaking the XML.
func Tamper(encoded, oldValue, newValue string) (string, error) {
	xmlBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	mutated := strings.Replace(string(xmlBytes), oldValue, newValue, 1)
	if mutated == string(xmlBytes) {
		return "", fmt.Errorf("value %q not found in response", oldValue)
	}
	return base64.StdEncoding.EncodeToString([]byte(mutated)), nil
}

func (i *IdP) signingContext() (*dsig.SigningContext, error) {
	ctx := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(i.keyPair()))
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, err
	}
	ctx.Hash = crypto.SHA256
	return ctx, nil
}

func (i *IdP) signAssertion(resp *saml.Response) error {
	if resp.Assertion == nil {
		return errors.New("response missing assertion")
	}
	ctx, err := i.signingContext()
	if err != nil {
		return err
	}
	signedEl, err := ctx.SignEnveloped(resp.Assertion.Element())
	if err != nil {
		return fmt.Errorf("sign assertion: %w", err)
	}
	sigEl, err := lastChildElement(signedEl)
	if err != nil {
		return fmt.Errorf("sign assertion: %w", err)
	}
	resp.Assertion.Signature = sigEl
	return nil
}

func (i *IdP) signResponse(resp *saml.Response) error {
	ctx, err := i.signingContext()
	if err != nil {
		return err
	}
	signedEl, err := ctx.SignEnveloped(resp.Element())
	if err != nil {
		return fmt.Errorf("sign response: %w", err)
	}
	sigEl, err := lastChildElement(signedEl)
	if err != nil {
		return fmt.Errorf("sign response: %w", err)
	}
	resp.Signature = sigEl
	return nil
}

func toSAMLAttributes(attrs map[string][]string) []saml.Attribute {
	out := make([]saml.Attribute, 0, len(attrs))
	for name, vals := range attrs {
		vs := make([]saml.AttributeValue, 0, len(vals))
		for _, s := range vals {
			vs = append(vs, saml.AttributeValue{Type: "xs:string", Value: s})
		}
		out = append(out, saml.Attribute{
			FriendlyName: name,
			Name:         name,
			NameFormat:   attrNameFormatURI,
			Values:       vs,
		})
	}
	return out
}

func lastChildElement(parent *etree.Element) (*etree.Element, error) {
	children := parent.ChildElements()
	if len(children) == 0 {
		return nil, errors.New("no child elements found")
	}
	return children[len(children)-1], nil
}

func newSAMLID() (string, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return "_" + hex.EncodeToString(b[:]), nil
}
