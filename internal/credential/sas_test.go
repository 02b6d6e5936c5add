package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestDeriveToken_SignatureRevalidates(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	uris := []string{
		"h1.example.net/devices/sensor-01",
		"0ne0001234/registrations/sensor-01",
		"hub.example.net/devices/dev with space+plus",
	}
	secrets := []string{
		testSecret,
		base64.StdEncoding.EncodeToString([]byte{0x00, 0xff, 0x10}),
		base64.StdEncoding.EncodeToString([]byte("k")),
	}

	for _, uri := range uris {
		for _, secret := range secrets {
			t.Run(fmt.Sprintf("%s/%d", uri, len(secret)), func(t *testing.T) {
				tok, err := DeriveToken(uri, secret, time.Hour, now)
				require.NoError(t, err)

				assert.Equal(t, now.Add(time.Hour).Unix(), tok.Expiry)

				// Independent computation over the same string-to-sign.
				key, err := base64.StdEncoding.DecodeString(secret)
				require.NoError(t, err)
				mac := hmac.New(sha256.New, key)
				mac.Write([]byte(Quote(uri) + "\n" + fmt.Sprint(tok.Expiry)))
				want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

				got, err := Unquote(tok.Signature)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestDeriveToken_InvalidSecret(t *testing.T) {
	_, err := DeriveToken("h/devices/d", "not base64 !!", time.Hour, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSecret))
}

func TestDeriveToken_DefaultLifetime(t *testing.T) {
	now := time.Unix(1_000, 0)
	tok, err := DeriveToken("h/devices/d", testSecret, 0, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000+21600), tok.Expiry)
}

func TestToken_String(t *testing.T) {
	tok := Token{ResourceURI: "scope/registrations/dev", Expiry: 42, Signature: "abc%2B"}
	assert.Equal(t, "SharedAccessSignature sr=scope%2Fregistrations%2Fdev&sig=abc%2B&se=42", tok.String())

	tok.KeyName = ProvisioningKeyName
	assert.True(t, strings.HasSuffix(tok.String(), "&se=42&skn=registration"))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`abc+\0123"?%456@def`, "abc%2B%5C0123%22%3F%25456%40def"},
		{"a/b=c", "a%2Fb%3Dc"},
		{"~()*!.'-_", "~()*!.'-_"},
		{"é", "%C3%A9"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestQuote_RoundTrip(t *testing.T) {
	inputs := []string{
		"~()*!.'",
		"abcXYZ019-_",
		"sig+with/slash=",
		"0ne00/registrations/dev",
		"mixed ~(*)! and /?&=",
	}
	for _, x := range inputs {
		unq, err := Unquote(Quote(x))
		require.NoError(t, err)
		assert.Equal(t, x, unq)

		// Safe characters survive unquote and quote unchanged.
		safe := strings.Map(func(r rune) rune {
			if r < 0x80 && isSafe(byte(r)) {
				return r
			}
			return -1
		}, x)
		unqSafe, err := Unquote(safe)
		require.NoError(t, err)
		assert.Equal(t, Quote(safe), Quote(unqSafe))
	}
}

func TestCredential_Validate(t *testing.T) {
	assert.NoError(t, SymmetricKey(testSecret).Validate())
	assert.ErrorIs(t, SymmetricKey("").Validate(), ErrMissingSecret)
	assert.ErrorIs(t, SymmetricKey("%%%").Validate(), ErrInvalidSecret)
	assert.ErrorIs(t, X509(nil, []byte("key")).Validate(), ErrMissingCertificate)
	assert.ErrorIs(t, X509([]byte("cert"), nil).Validate(), ErrMissingCertificate)
	assert.NoError(t, X509([]byte("cert"), []byte("key")).Validate())
	assert.ErrorIs(t, Credential{}.Validate(), ErrUnknownKind)
}

func TestCredential_TLSCertificateRejectsGarbage(t *testing.T) {
	_, err := X509([]byte("cert"), []byte("key")).TLSCertificate()
	assert.ErrorIs(t, err, ErrInvalidCertificate)

	_, err = SymmetricKey(testSecret).TLSCertificate()
	assert.ErrorIs(t, err, ErrMissingCertificate)
}

func TestIdentity_Token(t *testing.T) {
	id := Identity{ScopeID: "scope", DeviceID: "dev", Credential: SymmetricKey(testSecret)}
	tok, ok, err := id.Token(DeviceResource("h1.example.net", "dev"), time.Minute, time.Unix(0, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h1.example.net/devices/dev", tok.ResourceURI)

	id.Credential = X509([]byte("c"), []byte("k"))
	_, ok, err = id.Token("anything", time.Minute, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("x509")
	require.NoError(t, err)
	assert.Equal(t, KindX509, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindSymmetricKey, k)

	_, err = ParseKind("tpm")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
