package store

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/MrEthical07/dashAuth/session"
)

// CookieStore mirrors records into the session cookies of a jar so requests
// to baseURL carry them. The jar cannot hold the refresh token, so Load only
// recovers the access token.
type CookieStore struct {
	jar      http.CookieJar
	baseURL  *url.URL
	names    session.CookieNames
	lifetime time.Duration
}

// NewCookieStore returns a [CookieStore]. Empty names fall back to
// [session.DefaultCookieNames].
func NewCookieStore(jar http.CookieJar, baseURL *url.URL, names session.CookieNames, lifetime time.Duration) *CookieStore {
	if names == (session.CookieNames{}) {
		names = session.DefaultCookieNames()
	}
	return &CookieStore{jar: jar, baseURL: baseURL, names: names, lifetime: lifetime}
}

func (s *CookieStore) Load(ctx context.Context) (Record, error) {
	for _, c := range s.jar.Cookies(s.baseURL) {
		if c.Name == s.names.Token && c.Value != "" {
			return Record{Token: c.Value}, nil
		}
	}
	return Record{}, ErrNoSession
}

func (s *CookieStore) Save(ctx context.Context, rec Record) error {
	s.jar.SetCookies(s.baseURL, SessionCookies(rec, s.names, s.lifetime))
	return nil
}

func (s *CookieStore) Clear(ctx context.Context) error {
	s.jar.SetCookies(s.baseURL, ExpiredCookies(s.names))
	return nil
}
