package store

import (
	"context"
	"errors"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

func newRedisStoreTest(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb, "dashauth:test", "browser-1", ttl)
}

func sampleRecord() Record {
	return Record{
		Token:        "access-1",
		RefreshToken: "refresh-1",
		User: &session.User{
			ID:          "emp-7",
			Roles:       []permission.Role{permission.RoleAdmin, permission.RoleEmployee},
			Permissions: []permission.Permission{permission.PermDashboardView, permission.PermLeaveRead},
		},
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Record{})
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.Load(ctx)
	if err != nil || rec.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected load %+v err=%v", rec, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestRedisStoreSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	mr, s := newRedisStoreTest(t, time.Hour)

	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("dashauth:test:browser-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
	rec, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Token != "access-1" || rec.User == nil || len(rec.User.Roles) != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}

	existed, err := s.ClearExisting(ctx)
	if err != nil || !existed {
		t.Fatalf("expected first clear to remove record, existed=%v err=%v", existed, err)
	}
	existed, err = s.ClearExisting(ctx)
	if err != nil || existed {
		t.Fatalf("expected second clear to be a no-op, existed=%v err=%v", existed, err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestRedisStoreWireFormat(t *testing.T) {
	mr, s := newRedisStoreTest(t, 0)
	if err := s.Save(context.Background(), Record{Token: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := mr.Get("dashauth:test:browser-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if raw != `{"token":"a","refreshToken":"r"}` {
		t.Fatalf("unexpected blob %s", raw)
	}
}

func TestRedisStoreForClientIsolation(t *testing.T) {
	ctx := context.Background()
	_, s := newRedisStoreTest(t, time.Minute)
	other := s.ForClient("browser-2")
	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected other client to be empty, got %v", err)
	}
}

func TestRedisStoreCorruptAndUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, s := newRedisStoreTest(t, 0)
	if err := mr.Set("dashauth:test:browser-1", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}

	mr.Close()
	if err := s.Save(ctx, sampleRecord()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSessionCookiesShape(t *testing.T) {
	names := session.DefaultCookieNames()
	cookies := SessionCookies(sampleRecord(), names, 7*24*time.Hour)
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Path != "/" || c.MaxAge != 7*24*60*60 {
			t.Fatalf("unexpected cookie attributes %+v", c)
		}
	}
	if cookies[1].Value != "admin%2Cemployee" {
		t.Fatalf("unexpected roles cookie %q", cookies[1].Value)
	}

	for _, c := range ExpiredCookies(names) {
		if c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("expected expired cookie, got %+v", c)
		}
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://hr.example.com/")
	s := NewCookieStore(jar, base, session.CookieNames{}, time.Hour)

	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Load(ctx)
	if err != nil || rec.Token != "access-1" || rec.RefreshToken != "" {
		t.Fatalf("unexpected cookie load %+v err=%v", rec, err)
	}
	if n := len(jar.Cookies(base)); n != 3 {
		t.Fatalf("expected 3 cookies in jar, got %d", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(jar.Cookies(base)); n != 0 {
		t.Fatalf("expected jar cleared, got %d cookies", n)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) (Record, error) { return Record{}, f.err }
func (f failingStore) Save(context.Context, Record) error   { return f.err }
func (f failingStore) Clear(context.Context) error          { return f.err }

func TestTeeWritesThroughAndJoinsErrors(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemoryStore(Record{}), NewMemoryStore(Record{})
	boom := errors.New("boom")
	tee := Tee{a, failingStore{err: boom}, b}

	if err := tee.Save(ctx, sampleRecord()); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if rec, err := b.Load(ctx); err != nil || rec.Token != "access-1" {
		t.Fatal("expected write to continue past failing store")
	}
	if rec, err := tee.Load(ctx); err != nil || rec.Token != "access-1" {
		t.Fatal("expected load from primary")
	}
	_ = tee.Clear(ctx)
	if _, err := a.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatal("expected primary cleared")
	}
	if _, err := (Tee{}).Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatal("expected empty tee to have no session")
	}
}
