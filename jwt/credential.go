package jwt

import "strings"

// OpaqueSubject is the placeholder subject reported for opaque credentials.
const OpaqueSubject = "opaque"

// Credential is the parsed shape of a bearer string: [Opaque] or [Structured].
type Credential interface {
	String() string
	credential()
}

// Opaque is a credential the client cannot decode locally. It is trusted by
// construction.
type Opaque struct {
	Raw string
}

func (o Opaque) String() string { return o.Raw }
func (Opaque) credential()      {}

// Structured is a header.payload.signature credential. Segments are kept in their
// encoded form so the signing input can be rebuilt byte for byte.
type Structured struct {
	Raw       string
	Header    string
	Payload   string
	Signature string
}

func (s Structured) String() string { return s.Raw }
func (Structured) credential()      {}

// SigningInput returns the exact bytes the signature was computed over.
func (s Structured) SigningInput() string {
	return s.Header + "." + s.Payload
}

// ParseCredential classifies raw by segment count. It never fails.
func ParseCredential(raw string) Credential {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Opaque{Raw: raw}
	}
	return Structured{
		Raw:       raw,
		Header:    parts[0],
		Payload:   parts[1],
		Signature: parts[2],
	}
}
