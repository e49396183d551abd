package store

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

var (
	// ErrNoSession is returned by Load when no record is stored.
	ErrNoSession = errors.New("no stored session")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrCorruptRecord is returned when a stored blob cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt credential record")
)

// Record is the client storage blob, overwritten wholesale on every refresh.
type Record struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         *session.User `json:"user,omitempty"`
}

// CredentialStore is the persistence boundary of the refresh coordinator.
type CredentialStore interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps one record in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	rec *Record
}

// NewMemoryStore returns a store seeded with rec when it carries a token.
func NewMemoryStore(rec Record) *MemoryStore {
	s := &MemoryStore{}
	if rec.Token != "" || rec.RefreshToken != "" {
		s.rec = &rec
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return Record{}, ErrNoSession
	}
	return *s.rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rec = &rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()
	return nil
}

// Tee loads from the first store and applies writes to all of them. Writes
// continue past failures and return the joined error.
type Tee []CredentialStore

func (t Tee) Load(ctx context.Context) (Record, error) {
	if len(t) == 0 {
		return Record{}, ErrNoSession
	}
	return t[0].Load(ctx)
}

func (t Tee) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) Clear(ctx context.Context) error {
	var errs []error
	for _, s := range t {
		if err := s.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionCookies returns the access, roles and permissions cookies for rec.
// Roles and permissions cookies are only emitted when rec carries a user.
func SessionCookies(rec Record, names session.CookieNames, lifetime time.Duration) []*http.Cookie {
	maxAge := int(lifetime / time.Second)
	cookies := []*http.Cookie{newCookie(names.Token, rec.Token, maxAge)}
	if rec.User != nil {
		cookies = append(cookies,
			newCookie(names.Roles, session.EncodeList(permission.RoleStrings(rec.User.Roles)), maxAge),
			newCookie(names.Permissions, session.EncodeList(permission.PermissionStrings(rec.User.Permissions)), maxAge),
		)
	}
	return cookies
}

// ExpiredCookies returns empty, already-expired versions of all three cookies.
func ExpiredCookies(names session.CookieNames) []*http.Cookie {
	// MaxAge < 0 serialises as Max-Age=0.
	return []*http.Cookie{
		newCookie(names.Token, "", -1),
		newCookie(names.Roles, "", -1),
		newCookie(names.Permissions, "", -1),
	}
}

func newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}
}
