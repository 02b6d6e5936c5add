// Package credential derives the authentication material a device presents to
// the cloud.
//
// Two credential kinds are supported:
//   - Symmetric key: a base64 secret used to sign Shared Access Signature (SAS)
//     tokens. Tokens are needed twice, once for the provisioning service and
//     once for the hub session.
//   - X.509: a certificate/key pair presented during the TLS handshake. No
//     token is derived; this package only checks the material is present.
//
// # Token format
//
//	SharedAccessSignature sr=<quoted uri>&sig=<signature>&se=<expiry>[&skn=<key name>]
//
// The signature is the base64 HMAC-SHA256 of "<quoted uri>\n<expiry>" keyed by
// the decoded secret, percent-encoded with Quote.
//
// # Security
//
// Never log a secret or a full token. Log the resource URI and expiry instead.
package credential
