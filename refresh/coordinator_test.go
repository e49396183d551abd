package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/dashAuth/internal/metrics"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/store"
)

const (
	oldToken = "access-old"
	newToken = "access-new"
)

// countingStore wraps a MemoryStore and counts writes.
type countingStore struct {
	*store.MemoryStore
	saves  atomic.Int32
	clears atomic.Int32
}

func newCountingStore(rec store.Record) *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore(rec)}
}

func (s *countingStore) Save(ctx context.Context, rec store.Record) error {
	s.saves.Add(1)
	return s.MemoryStore.Save(ctx, rec)
}

func (s *countingStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.MemoryStore.Clear(ctx)
}

// dashboardAPI accepts only newToken on /api/ and issues newToken on refresh.
type dashboardAPI struct {
	srv *httptest.Server

	refreshCalls  atomic.Int32
	refreshStatus int
	// beforeRefresh runs inside the refresh handler before it responds.
	beforeRefresh func()
	// barrier, when set, holds every stale-token API call until it is released.
	barrier *sync.WaitGroup

	mu          sync.Mutex
	apiCalls    int
	authorized  []string
	refreshBody []string
}

func newDashboardAPI(t *testing.T) *dashboardAPI {
	t.Helper()
	api := &dashboardAPI{refreshStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		api.refreshCalls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.refreshBody = append(api.refreshBody, string(raw))
		api.mu.Unlock()
		if api.beforeRefresh != nil {
			api.beforeRefresh()
		}
		if api.refreshStatus != http.StatusOK {
			w.WriteHeader(api.refreshStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Pair{AccessToken: newToken, RefreshToken: "refresh-new"})
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.apiCalls++
		api.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+newToken {
			if api.barrier != nil {
				api.barrier.Done()
				api.barrier.Wait()
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.authorized = append(api.authorized, r.URL.Path)
		api.mu.Unlock()
		_, _ = fmt.Fprintf(w, "ok %s %s", r.URL.Path, body)
	})
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

type harness struct {
	api     *dashboardAPI
	store   *countingStore
	nav     *LocationNavigator
	metrics *metrics.Metrics
	coord   *Coordinator
	client  *http.Client
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, rec store.Record, extra func(*Options)) *harness {
	t.Helper()
	api := newDashboardAPI(t)
	st := newCountingStore(rec)
	nav := NewLocationNavigator("/dashboard/leave")
	m := metrics.New(metrics.Config{Enabled: true})
	core, logs := observer.New(zapcore.DebugLevel)

	opts := Options{
		Store:      st,
		Renewer:    NewClient(api.srv.URL, "", api.srv.Client()),
		Navigator:  nav,
		SignInPath: "/auth/sign-in",
		Timeout:    5 * time.Second,
		Logger:     zap.New(core),
		Metrics:    m,
	}
	if extra != nil {
		extra(&opts)
	}
	coord, err := NewCoordinator(opts)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	if err := coord.Prime(context.Background()); err != nil && !errors.Is(err, store.ErrNoSession) {
		t.Fatalf("prime: %v", err)
	}
	return &harness{
		api:     api,
		store:   st,
		nav:     nav,
		metrics: m,
		coord:   coord,
		client:  coord.HTTPClient(api.srv.Client().Transport),
		logs:    logs,
	}
}

func signedIn() store.Record {
	return store.Record{
		Token:        oldToken,
		RefreshToken: "refresh-old",
		User: &session.User{
			ID:    "emp-1",
			Roles: []permission.Role{permission.RoleAdmin},
		},
	}
}

func poll(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	if !poll(cond) {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func (h *harness) get(path string) (*http.Response, error) {
	return h.client.Get(h.api.srv.URL + path)
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	for _, n := range []int{5, 40} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			h := newHarness(t, signedIn(), nil)

			var barrier sync.WaitGroup
			barrier.Add(n)
			h.api.barrier = &barrier
			// Hold the renewal until every other caller is queued behind it.
			h.api.beforeRefresh = func() {
				if !poll(func() bool {
					return h.metrics.Value(metrics.MetricRefreshWaiterQueued) == uint64(n-1)
				}) {
					t.Errorf("timed out waiting for %d waiters", n-1)
				}
			}

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					resp, err := h.get(fmt.Sprintf("/api/employees/%d", i))
					if err != nil {
						errs <- err
						return
					}
					defer resp.Body.Close()
					if resp.StatusCode != http.StatusOK {
						errs <- fmt.Errorf("request %d: status %d", i, resp.StatusCode)
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatal(err)
			}

			if got := h.api.refreshCalls.Load(); got != 1 {
				t.Fatalf("expected exactly 1 refresh call, got %d", got)
			}
			if len(h.api.authorized) != n {
				t.Fatalf("expected %d retried requests with the new token, got %d", n, len(h.api.authorized))
			}
			if h.coord.Token() != newToken {
				t.Fatalf("expected default token %q, got %q", newToken, h.coord.Token())
			}
			if h.metrics.Value(metrics.MetricRefreshRetried) != uint64(n) {
				t.Fatalf("expected %d retries, got %d", n, h.metrics.Value(metrics.MetricRefreshRetried))
			}
			if h.store.clears.Load() != 0 {
				t.Fatal("successful refresh must not clear the store")
			}
		})
	}
}

func TestQueuedWaitersDrainInArrivalOrder(t *testing.T) {
	release := make(chan struct{})
	renewer := renewerFunc(func(ctx context.Context, refreshToken string) (Pair, error) {
		<-release
		return Pair{AccessToken: newToken, RefreshToken: "refresh-new"}, nil
	})
	h := newHarness(t, signedIn(), func(o *Options) { o.Renewer = renewer })

	first := make(chan string, 1)
	go func() {
		tok, _ := h.coord.Renew(context.Background())
		first <- tok
	}()
	waitFor(t, "refresh start", h.coord.Refreshing)

	const waiters = 5
	results := make([]string, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.coord.Renew(context.Background())
		}(i)
		waitFor(t, "waiter enqueue", func() bool {
			return h.metrics.Value(metrics.MetricRefreshWaiterQueued) == uint64(i+1)
		})
	}
	close(release)
	wg.Wait()

	if tok := <-first; tok != newToken {
		t.Fatalf("initiator got %q", tok)
	}
	for i, tok := range results {
		if tok != newToken {
			t.Fatalf("waiter %d got %q, want the cycle's token", i, tok)
		}
	}

	queued := h.logs.FilterMessage("request queued behind refresh").All()
	if len(queued) != waiters {
		t.Fatalf("expected %d queue logs, got %d", waiters, len(queued))
	}
	for i, entry := range queued {
		if pos := entry.ContextMap()["position"]; pos != int64(i+1) {
			t.Fatalf("waiter %d queued at position %v", i, pos)
		}
	}
}

type renewerFunc func(ctx context.Context, refreshToken string) (Pair, error)

func (f renewerFunc) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	return f(ctx, refreshToken)
}

func TestRefreshFailureRejectsAllAndClearsOnce(t *testing.T) {
	const n = 5
	h := newHarness(t, signedIn(), nil)
	h.api.refreshStatus = http.StatusUnauthorized

	var barrier sync.WaitGroup
	barrier.Add(n)
	h.api.barrier = &barrier

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.get(fmt.Sprintf("/api/leave/%d", i))
			if err == nil {
				resp.Body.Close()
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrRefreshRejected) {
			t.Fatalf("request %d: expected ErrRefreshRejected, got %v", i, err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request %d: expected StatusError 401, got %v", i, err)
		}
	}
	if got := h.api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
	if got := h.store.clears.Load(); got != 1 {
		t.Fatalf("expected store cleared exactly once, got %d", got)
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, store.ErrNoSession) {
		t.Fatalf("expected empty store, got %v", err)
	}
	history := h.nav.History()
	if len(history) != 1 || history[0] != "/auth/sign-in?callbackUrl=%2Fdashboard%2Fleave" {
		t.Fatalf("unexpected navigation %v", history)
	}
	if h.coord.Token() != "" {
		t.Fatal("expected default token dropped")
	}
	if h.metrics.Value(metrics.MetricForcedLogout) != 1 {
		t.Fatal("expected one forced logout")
	}
}

func TestRefreshFailureClearsAllThreeCookies(t *testing.T) {
	h := newHarness(t, store.Record{}, nil)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse(h.api.srv.URL)
	cookies := store.NewCookieStore(jar, base, session.DefaultCookieNames(), 7*24*time.Hour)
	coord, err := NewCoordinator(Options{
		Store:      store.Tee{h.store, cookies},
		Renewer:    NewClient(h.api.srv.URL, "", h.api.srv.Client()),
		Navigator:  h.nav,
		SignInPath: "/auth/sign-in",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.Establish(context.Background(), signedIn()); err != nil {
		t.Fatal(err)
	}
	if n := len(jar.Cookies(base)); n != 3 {
		t.Fatalf("expected 3 cookies after sign-in, got %d", n)
	}

	h.api.refreshStatus = http.StatusUnauthorized
	client := coord.HTTPClient(h.api.srv.Client().Transport)
	if _, err := client.Get(h.api.srv.URL + "/api/departments"); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
	if n := len(jar.Cookies(base)); n != 0 {
		t.Fatalf("expected all cookies cleared, got %d", n)
	}
	if h.store.clears.Load() != 1 {
		t.Fatalf("expected one clear, got %d", h.store.clears.Load())
	}
	if got := h.nav.History(); len(got) != 1 || !strings.HasPrefix(got[0], "/auth/sign-in?callbackUrl=") {
		t.Fatalf("unexpected navigation %v", got)
	}
}

func TestSuccessfulRefreshPersistsPair(t *testing.T) {
	h := newHarness(t, signedIn(), nil)

	resp, err := h.get("/api/designations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	rec, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Token != newToken || rec.RefreshToken != "refresh-new" {
		t.Fatalf("unexpected stored pair %+v", rec)
	}
	if rec.User == nil || rec.User.ID != "emp-1" {
		t.Fatal("expected stored user to survive refresh")
	}
	if body := h.api.refreshBody[0]; body != `{"refreshToken":"refresh-old"}` {
		t.Fatalf("unexpected refresh body %s", body)
	}

	// The default header now carries the new token, so no further refresh.
	resp, err = h.get("/api/designations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if h.api.refreshCalls.Load() != 1 {
		t.Fatalf("expected no second refresh, got %d", h.api.refreshCalls.Load())
	}
}

func TestRetriedRequestIsNotRetriedAgain(t *testing.T) {
	renewer := renewerFunc(func(context.Context, string) (Pair, error) {
		return Pair{AccessToken: "still-rejected", RefreshToken: "r2"}, nil
	})
	h := newHarness(t, signedIn(), func(o *Options) { o.Renewer = renewer })

	resp, err := h.get("/api/attendance")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the retry's 401 to surface, got %d", resp.StatusCode)
	}
	if h.api.apiCalls != 2 {
		t.Fatalf("expected original + one retry, got %d calls", h.api.apiCalls)
	}
	if h.metrics.Value(metrics.MetricRefreshRetryExhausted) != 1 {
		t.Fatal("expected exhausted retry to be counted")
	}

	req, _ := http.NewRequestWithContext(MarkRetried(context.Background()), http.MethodGet, h.api.srv.URL+"/api/attendance", nil)
	resp, err = h.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || h.api.apiCalls != 3 {
		t.Fatalf("marked request must not be retried: status %d calls %d", resp.StatusCode, h.api.apiCalls)
	}
	if h.metrics.Value(metrics.MetricRefreshStarted) != 1 {
		t.Fatal("marked request must not start a refresh")
	}
}

func TestRefreshEndpoint401DoesNotRecurse(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	h.api.refreshStatus = http.StatusUnauthorized

	resp, err := h.client.Post(h.api.srv.URL+"/auth/refresh", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected raw 401 from refresh endpoint, got %d", resp.StatusCode)
	}
	if h.api.refreshCalls.Load() != 1 || h.metrics.Value(metrics.MetricRefreshStarted) != 0 {
		t.Fatal("a 401 from the refresh endpoint must not trigger renewal")
	}
}

func TestStale401AdoptsSettledToken(t *testing.T) {
	h := newHarness(t, signedIn(), nil)

	_, sent := h.coord.current()
	if _, err := h.coord.Renew(context.Background()); err != nil {
		t.Fatal(err)
	}
	tok, err := h.coord.await(context.Background(), &sent)
	if err != nil || tok != newToken {
		t.Fatalf("expected settled token, got %q err=%v", tok, err)
	}
	if h.api.refreshCalls.Load() != 1 {
		t.Fatalf("stale 401 must not refresh again, got %d calls", h.api.refreshCalls.Load())
	}
	if h.metrics.Value(metrics.MetricRefreshStaleRetry) != 1 {
		t.Fatal("expected stale retry counted")
	}
}

func TestStale401AfterFailureSharesError(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	h.api.refreshStatus = http.StatusForbidden

	_, sent := h.coord.current()
	if _, err := h.coord.Renew(context.Background()); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if _, err := h.coord.await(context.Background(), &sent); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected shared rejection, got %v", err)
	}
	if h.store.clears.Load() != 1 || h.api.refreshCalls.Load() != 1 {
		t.Fatalf("late 401 must not start another cycle: clears=%d calls=%d", h.store.clears.Load(), h.api.refreshCalls.Load())
	}
}

func TestNoStoredSessionForcesLogout(t *testing.T) {
	h := newHarness(t, store.Record{}, nil)
	if _, err := h.coord.Renew(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if h.api.refreshCalls.Load() != 0 {
		t.Fatal("refresh endpoint must not be called without a refresh token")
	}
	if len(h.nav.History()) != 1 {
		t.Fatalf("expected redirect to sign-in, got %v", h.nav.History())
	}
}

func TestAlreadyOnSignInDoesNotNavigate(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	h.api.refreshStatus = http.StatusUnauthorized
	h.nav.Visit("/auth/sign-in?callbackUrl=%2Fdashboard")

	if _, err := h.coord.Renew(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if got := h.nav.History(); len(got) != 0 {
		t.Fatalf("expected no navigation from sign-in page, got %v", got)
	}
	if h.store.clears.Load() != 1 {
		t.Fatal("expected store cleared even on sign-in page")
	}
}

func TestCancelledWaiterLeavesCycleIntact(t *testing.T) {
	release := make(chan struct{})
	renewer := renewerFunc(func(context.Context, string) (Pair, error) {
		<-release
		return Pair{AccessToken: newToken}, nil
	})
	h := newHarness(t, signedIn(), func(o *Options) { o.Renewer = renewer })

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Renew(context.Background())
		done <- err
	}()
	waitFor(t, "refresh start", h.coord.Refreshing)

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		_, err := h.coord.Renew(ctx)
		waiterErr <- err
	}()
	waitFor(t, "waiter enqueue", func() bool {
		return h.metrics.Value(metrics.MetricRefreshWaiterQueued) == 1
	})
	cancel()
	if err := <-waiterErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("initiator: %v", err)
	}
	rec, _ := h.store.Load(context.Background())
	if rec.RefreshToken != "refresh-old" {
		t.Fatalf("expected previous refresh token kept when none returned, got %q", rec.RefreshToken)
	}
}

func TestNonReplayableBodyIsNotRetried(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	req, _ := http.NewRequest(http.MethodPost, h.api.srv.URL+"/api/communications", io.NopCloser(strings.NewReader("hello")))
	req.GetBody = nil

	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || h.api.refreshCalls.Load() != 0 {
		t.Fatalf("expected raw 401 without refresh, status %d calls %d", resp.StatusCode, h.api.refreshCalls.Load())
	}
}

func TestReplayableBodyIsResent(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	resp, err := h.client.Post(h.api.srv.URL+"/api/communications", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok /api/communications hello" {
		t.Fatalf("expected body replayed on retry, got %q", body)
	}
}

func TestRenewIsTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, signedIn(), func(o *Options) { o.Tracer = tp.Tracer("test") })
	if _, err := h.coord.Renew(context.Background()); err != nil {
		t.Fatal(err)
	}
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "refresh.Renew" {
		t.Fatalf("expected one refresh.Renew span, got %d", len(spans))
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "dashauth.cycle_id" && kv.Value.AsString() != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected cycle id attribute")
	}
}

func TestNewCoordinatorValidation(t *testing.T) {
	if _, err := NewCoordinator(Options{Renewer: NewClient("http://x", "", nil)}); !errors.Is(err, ErrMissingStore) {
		t.Fatalf("expected ErrMissingStore, got %v", err)
	}
	if _, err := NewCoordinator(Options{Store: store.NewMemoryStore(store.Record{})}); !errors.Is(err, ErrMissingRenewer) {
		t.Fatalf("expected ErrMissingRenewer, got %v", err)
	}
	_, err := NewCoordinator(Options{
		Store:   store.NewMemoryStore(store.Record{}),
		Renewer: NewClient("http://x", "", nil),
		Timeout: -time.Second,
	})
	if err == nil {
		t.Fatal("expected negative timeout rejected")
	}
}

func TestLogoutFailsLateRequestsWithoutRefresh(t *testing.T) {
	h := newHarness(t, signedIn(), nil)
	_, sent := h.coord.current()
	if err := h.coord.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := h.coord.await(context.Background(), &sent); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if h.api.refreshCalls.Load() != 0 || len(h.nav.History()) != 0 {
		t.Fatal("logout must not refresh or navigate")
	}
}
