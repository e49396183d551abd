package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// SignatureMode selects how [Verifier] treats the signature segment.
type SignatureMode int

const (
	// SignatureHS256 recomputes HMAC-SHA-256 over header.payload with Config.Secret.
	SignatureHS256 SignatureMode = iota
	// SignatureNone skips signature checks entirely. Any structurally valid,
	// unexpired credential verifies. Only for deployments where the trust boundary
	// is the transport or an upstream issuer.
	SignatureNone
)

func (m SignatureMode) String() string {
	switch m {
	case SignatureHS256:
		return "hs256"
	case SignatureNone:
		return "none"
	default:
		return "unknown"
	}
}

// Reason is the machine-readable cause of a failed verification.
type Reason string

const (
	ReasonInvalidPayload    Reason = "invalid-payload"
	ReasonTokenExpired      Reason = "token-expired"
	ReasonSignatureMismatch Reason = "signature-mismatch"
)

var (
	// ErrMissingSecret is returned by NewVerifier when SignatureHS256 has no secret.
	ErrMissingSecret = errors.New("hs256 verification requires a secret")
	// ErrUnexpectedSecret is returned when SignatureNone is combined with a secret.
	ErrUnexpectedSecret = errors.New("secret configured but signature verification disabled")
	// ErrUnsupportedMode is returned for an unknown SignatureMode.
	ErrUnsupportedMode = errors.New("unsupported signature mode")
	// ErrOpaqueCredential is returned by DecodeClaims for credentials without a payload.
	ErrOpaqueCredential = errors.New("opaque credential has no claims")
	// ErrMissingSubject is returned by DecodeClaims for a payload without "sub".
	ErrMissingSubject = errors.New("payload has no subject")
)

// stdToURL maps the standard base64 alphabet onto the URL-safe one, so payloads
// encoded with either decode.
var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// Claims is the decoded payload of a structured credential. It is untrusted until
// [Verifier.Verify] returns [Valid].
type Claims struct {
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Result is the outcome of [Verifier.Verify]: [Valid] or [Invalid].
type Result interface {
	result()
}

// Valid carries the claims of a credential that passed every configured check.
type Valid struct {
	Claims *Claims
}

// Invalid carries the failure reason. Claims is set when the payload decoded,
// so callers can log the stale identity of an expired credential.
type Invalid struct {
	Reason Reason
	Claims *Claims
}

func (Valid) result()   {}
func (Invalid) result() {}

// Config configures a [Verifier].
type Config struct {
	Mode   SignatureMode
	Secret []byte
	Clock  clockwork.Clock
}

// Verifier checks credential structure, expiry and signature. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	mode   SignatureMode
	secret []byte
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewVerifier validates cfg and returns a [Verifier].
func NewVerifier(cfg Config) (*Verifier, error) {
	switch cfg.Mode {
	case SignatureHS256:
		if len(cfg.Secret) == 0 {
			return nil, ErrMissingSecret
		}
	case SignatureNone:
		if len(cfg.Secret) > 0 {
			return nil, ErrUnexpectedSecret
		}
	default:
		return nil, ErrUnsupportedMode
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Verifier{
		mode:   cfg.Mode,
		secret: secret,
		clock:  cfg.Clock,
		// Padding allowed: unpadded segments get "=" restored to a multiple of 4.
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}, nil
}

// Mode reports the configured signature mode.
func (v *Verifier) Mode() SignatureMode {
	return v.mode
}

// Verify classifies raw and checks it. It never panics and never returns an error;
// every failure is an [Invalid] with a [Reason].
func (v *Verifier) Verify(raw string) Result {
	structured, ok := ParseCredential(raw).(Structured)
	if !ok {
		return Valid{Claims: opaqueClaims()}
	}

	claims, err := decodePayload(v.parser, structured.Payload)
	if err != nil {
		return Invalid{Reason: ReasonInvalidPayload}
	}

	if claims.ExpiresAt != nil && v.clock.Now().After(claims.ExpiresAt.Time) {
		return Invalid{Reason: ReasonTokenExpired, Claims: claims}
	}

	if v.mode == SignatureHS256 && !v.signatureMatches(structured) {
		return Invalid{Reason: ReasonSignatureMismatch, Claims: claims}
	}

	return Valid{Claims: claims}
}

func (v *Verifier) signatureMatches(s Structured) bool {
	sig, err := v.parser.DecodeSegment(s.Signature)
	if err != nil || len(sig) == 0 {
		return false
	}
	return jwt.SigningMethodHS256.Verify(s.SigningInput(), sig, v.secret) == nil
}

// DecodeClaims decodes the payload of a structured credential without verifying
// expiry or signature.
func DecodeClaims(raw string) (*Claims, error) {
	structured, ok := ParseCredential(raw).(Structured)
	if !ok {
		return nil, ErrOpaqueCredential
	}
	return decodePayload(jwt.NewParser(jwt.WithPaddingAllowed()), structured.Payload)
}

func decodePayload(parser *jwt.Parser, segment string) (*Claims, error) {
	payload, err := parser.DecodeSegment(stdToURL.Replace(segment))
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func opaqueClaims() *Claims {
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: OpaqueSubject}}
}
