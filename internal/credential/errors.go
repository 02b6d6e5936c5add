package credential

import "errors"

// Domain errors for credential handling.
var (
	// ErrInvalidSecret is returned when a symmetric key is not valid base64.
	ErrInvalidSecret = errors.New("credential: secret is not valid base64")

	// ErrMissingSecret is returned when a symmetric key credential has no secret.
	ErrMissingSecret = errors.New("credential: symmetric key is empty")

	// ErrMissingCertificate is returned when an X.509 credential lacks its
	// certificate or key material.
	ErrMissingCertificate = errors.New("credential: certificate and key are both required")

	// ErrInvalidCertificate is returned when the certificate/key pair cannot be parsed.
	ErrInvalidCertificate = errors.New("credential: invalid certificate material")

	// ErrUnknownKind is returned for an unrecognised credential kind.
	ErrUnknownKind = errors.New("credential: unknown credential kind")
)
