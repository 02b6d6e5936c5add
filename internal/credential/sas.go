package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenLifetime is how long a derived token stays valid unless configured otherwise.
const DefaultTokenLifetime = 6 * time.Hour

// ProvisioningKeyName is the policy name attached to provisioning tokens.
const ProvisioningKeyName = "registration"

// Token is a derived Shared Access Signature.
type Token struct {
	// ResourceURI is the unquoted resource the token grants access to,
	// e.g. "contoso.azure-devices.net/devices/sensor-01".
	ResourceURI string

	// Expiry is the unix time (seconds) after which the service rejects the token.
	Expiry int64

	// Signature is the percent-encoded base64 HMAC-SHA256 signature.
	Signature string

	// KeyName is the optional shared access policy name (skn).
	KeyName string
}

// String renders the token in the wire format expected in an authorization
// header or MQTT password.
func (t Token) String() string {
	s := fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%d", Quote(t.ResourceURI), t.Signature, t.Expiry)
	if t.KeyName != "" {
		s += "&skn=" + t.KeyName
	}
	return s
}

// ExpiresAt returns the expiry as a time.Time.
func (t Token) ExpiresAt() time.Time {
	return time.Unix(t.Expiry, 0)
}

// DeriveToken signs resourceURI with the base64 secret.
//
// The expiry is now+lifetime truncated to whole seconds. A lifetime <= 0 falls
// back to DefaultTokenLifetime.
//
// Returns ErrInvalidSecret if the secret does not decode.
func DeriveToken(resourceURI, secret string, lifetime time.Duration, now time.Time) (Token, error) {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	expiry := now.Add(lifetime).Unix()

	sig, err := Sign(secret, StringToSign(resourceURI, expiry))
	if err != nil {
		return Token{}, err
	}

	// Some encoders append a line break to base64 output.
	sig = strings.TrimSuffix(sig, "\n")

	return Token{
		ResourceURI: resourceURI,
		Expiry:      expiry,
		Signature:   Quote(sig),
	}, nil
}

// StringToSign builds the signed string: the quoted resource URI, a newline,
// and the expiry in decimal seconds.
func StringToSign(resourceURI string, expiry int64) string {
	return Quote(resourceURI) + "\n" + strconv.FormatInt(expiry, 10)
}

// Sign returns the base64 HMAC-SHA256 of message keyed by the decoded secret.
func Sign(secret, message string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// ProvisioningResource is the resource URI signed for provisioning calls.
func ProvisioningResource(scopeID, deviceID string) string {
	return scopeID + "/registrations/" + deviceID
}

// DeviceResource is the resource URI signed for a hub session.
func DeviceResource(host, deviceID string) string {
	return host + "/devices/" + deviceID
}
