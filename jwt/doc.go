// Package jwt decodes dashboard credentials and verifies them without any I/O.
//
// # Credential shapes
//
// A credential is either [Structured] (exactly three dot-separated base64url
// segments) or [Opaque] (anything else). Opaque credentials are accepted as-is
// and carry a placeholder subject; the upstream API rejects them on use if they
// are not genuine.
//
// # Verification order
//
// Payload decoding, then expiry, then the HS256 signature. An expired credential
// therefore reports [ReasonTokenExpired] even when its signature is also wrong.
//
// # What this package must NOT do
//
//   - Issue or sign credentials.
//   - Panic or return errors from [Verifier.Verify]; every failure is a [Reason].
//   - Import dashAuth, session, or refresh.
package jwt
