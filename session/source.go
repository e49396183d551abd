package session

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieNames are the cookie keys shared by the parser and cookie writers.
type CookieNames struct {
	Token       string
	Roles       string
	Permissions string
}

// DefaultCookieNames returns the dashboard's cookie keys.
func DefaultCookieNames() CookieNames {
	return CookieNames{
		Token:       "accessToken",
		Roles:       "userRoles",
		Permissions: "userPermissions",
	}
}

// Source is the cookie/header bag of one inbound request.
type Source interface {
	Cookie(name string) (string, bool)
}

// Cookies is a map-backed [Source].
type Cookies map[string]string

func (c Cookies) Cookie(name string) (string, bool) {
	v, ok := c[name]
	return v, ok
}

type requestSource struct {
	r *http.Request
}

// FromRequest reads cookies from r.
func FromRequest(r *http.Request) Source {
	return requestSource{r: r}
}

func (s requestSource) Cookie(name string) (string, bool) {
	if s.r == nil {
		return "", false
	}
	c, err := s.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// EncodeList joins values with commas and percent-encodes the result.
func EncodeList(values []string) string {
	return url.PathEscape(strings.Join(values, ","))
}

// DecodeList reverses [EncodeList]. Undecodable input yields nil.
func DecodeList(raw string) []string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil
	}
	parts := strings.Split(decoded, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
