package credential

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"
)

// Kind identifies how a device authenticates.
type Kind int

const (
	// KindSymmetricKey authenticates with SAS tokens signed by a shared secret.
	KindSymmetricKey Kind = iota + 1

	// KindX509 authenticates with a client certificate during the TLS handshake.
	KindX509
)

// String returns the config spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindSymmetricKey:
		return "symmetric_key"
	case KindX509:
		return "x509"
	default:
		return "unknown"
	}
}

// ParseKind converts a config value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "symmetric_key", "symmetric", "sas", "":
		return KindSymmetricKey, nil
	case "x509", "x509_cert", "certificate":
		return KindX509, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Credential is the secret material for one device. Exactly one of Secret or
// the certificate pair is meaningful, selected by Kind.
type Credential struct {
	Kind Kind

	// Secret is the base64 symmetric key.
	Secret string

	// CertPEM and KeyPEM hold the X.509 client certificate and private key.
	CertPEM []byte
	KeyPEM  []byte
}

// SymmetricKey builds a symmetric key credential.
func SymmetricKey(secret string) Credential {
	return Credential{Kind: KindSymmetricKey, Secret: secret}
}

// X509 builds a certificate credential from PEM blocks.
func X509(certPEM, keyPEM []byte) Credential {
	return Credential{Kind: KindX509, CertPEM: certPEM, KeyPEM: keyPEM}
}

// Validate checks that the material required by Kind is present.
// It does not contact any service.
func (c Credential) Validate() error {
	switch c.Kind {
	case KindSymmetricKey:
		if c.Secret == "" {
			return ErrMissingSecret
		}
		if _, err := Sign(c.Secret, ""); err != nil {
			return err
		}
		return nil
	case KindX509:
		if len(c.CertPEM) == 0 || len(c.KeyPEM) == 0 {
			return ErrMissingCertificate
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// TLSCertificate parses the X.509 pair for mutual TLS.
func (c Credential) TLSCertificate() (tls.Certificate, error) {
	if c.Kind != KindX509 {
		return tls.Certificate{}, fmt.Errorf("%w: %s credential has no certificate", ErrMissingCertificate, c.Kind)
	}
	if len(c.CertPEM) == 0 || len(c.KeyPEM) == 0 {
		return tls.Certificate{}, ErrMissingCertificate
	}
	cert, err := tls.X509KeyPair(c.CertPEM, c.KeyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return cert, nil
}

// Identity is the logical device: where it enrols and how it proves who it is.
// Treat it as immutable once built.
type Identity struct {
	ScopeID    string
	DeviceID   string
	Credential Credential
}

// Token derives a SAS token for resourceURI, or returns a zero Token and
// ok=false for X.509 identities, which authenticate at the TLS layer.
func (id Identity) Token(resourceURI string, lifetime time.Duration, now time.Time) (tok Token, ok bool, err error) {
	if id.Credential.Kind != KindSymmetricKey {
		return Token{}, false, nil
	}
	tok, err = DeriveToken(resourceURI, id.Credential.Secret, lifetime, now)
	if err != nil {
		return Token{}, false, err
	}
	return tok, true, nil
}
