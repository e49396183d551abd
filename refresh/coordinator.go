package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/dashAuth/internal/audit"
	"github.com/MrEthical07/dashAuth/internal/metrics"
	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/store"
)

const tracerName = "github.com/MrEthical07/dashAuth/refresh"

var (
	// ErrNoSession is returned by Renew when the store holds no refresh token.
	ErrNoSession = errors.New("no session to refresh")
	// ErrMissingStore is returned by NewCoordinator without a store.
	ErrMissingStore = errors.New("refresh: credential store is required")
	// ErrMissingRenewer is returned by NewCoordinator without a renewer.
	ErrMissingRenewer = errors.New("refresh: renewer is required")
)

// Options configures a [Coordinator]. Store and Renewer are required.
type Options struct {
	Store     store.CredentialStore
	Renewer   Renewer
	Navigator Navigator

	// SignInPath is where a failed renewal sends the navigator.
	SignInPath string
	// RefreshPath identifies the refresh call so a 401 from it never triggers
	// another renewal.
	RefreshPath string
	// Timeout bounds one renewal. Zero means no bound beyond the renewer's own.
	Timeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Audit   audit.Emitter
	Tracer  trace.Tracer
	Clock   clockwork.Clock
}

type outcome struct {
	token string
	err   error
}

// Coordinator owns the refresh state machine: an idle/refreshing flag, the
// FIFO waiter queue, and the default bearer token.
type Coordinator struct {
	store      store.CredentialStore
	renewer    Renewer
	nav        Navigator
	signInPath string
	refreshURL string
	timeout    time.Duration

	logger  *zap.Logger
	metrics *metrics.Metrics
	audit   audit.Emitter
	tracer  trace.Tracer
	clock   clockwork.Clock

	mu         sync.Mutex
	refreshing bool
	waiters    []chan outcome
	token      string
	generation uint64
	lastErr    error
}

// NewCoordinator validates opts and returns an idle [Coordinator].
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, ErrMissingStore
	}
	if opts.Renewer == nil {
		return nil, ErrMissingRenewer
	}
	if opts.Navigator == nil {
		opts.Navigator = NopNavigator{}
	}
	if opts.SignInPath == "" {
		opts.SignInPath = "/auth/sign-in"
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = DefaultPath
	}
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("refresh: negative timeout %s", opts.Timeout)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOpSink{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Coordinator{
		store:      opts.Store,
		renewer:    opts.Renewer,
		nav:        opts.Navigator,
		signInPath: opts.SignInPath,
		refreshURL: opts.RefreshPath,
		timeout:    opts.Timeout,
		logger:     opts.Logger.Named("refresh"),
		metrics:    opts.Metrics,
		audit:      opts.Audit,
		tracer:     opts.Tracer,
		clock:      opts.Clock,
	}, nil
}

// Token returns the default bearer token, or "" before any sign-in.
func (c *Coordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Refreshing reports whether a renewal is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Prime loads the stored record and adopts its access token as the default.
func (c *Coordinator) Prime(ctx context.Context) error {
	rec, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.settle(rec.Token, nil)
	return nil
}

// Establish stores rec after sign-in and adopts its access token.
func (c *Coordinator) Establish(ctx context.Context, rec store.Record) error {
	if err := c.store.Save(ctx, rec); err != nil {
		return err
	}
	c.settle(rec.Token, nil)
	return nil
}

// Logout clears the stored credential and the default token without
// navigating.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.settle("", ErrNoSession)
	return c.store.Clear(ctx)
}

// settle replaces the default token and starts a new generation. Requests
// sent in an earlier generation that see 401 adopt token (or fail with err)
// instead of renewing again.
func (c *Coordinator) settle(token string, err error) {
	c.mu.Lock()
	c.token = token
	c.lastErr = err
	c.generation++
	c.mu.Unlock()
}

// current returns the default token and the generation it belongs to.
func (c *Coordinator) current() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.generation
}

// Renew returns a fresh access token. If no renewal is running it starts one;
// otherwise the caller waits for the running one and shares its outcome.
//
// A waiter whose ctx ends stops waiting and gets ctx.Err(); the renewal itself
// runs detached from any caller's cancellation and is bounded by the
// configured timeout.
func (c *Coordinator) Renew(ctx context.Context) (string, error) {
	return c.await(ctx, nil)
}

// await is Renew for a request sent in generation *sent. If a cycle has
// settled since then, its outcome is returned without starting another.
func (c *Coordinator) await(ctx context.Context, sent *uint64) (string, error) {
	c.mu.Lock()
	if sent != nil && *sent != c.generation && !c.refreshing {
		token, err := c.token, c.lastErr
		c.mu.Unlock()
		if err == nil {
			c.metrics.Inc(metrics.MetricRefreshStaleRetry)
		}
		return token, err
	}
	if c.refreshing {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		queued := len(c.waiters)
		c.mu.Unlock()

		c.metrics.Inc(metrics.MetricRefreshWaiterQueued)
		c.logger.Debug("request queued behind refresh", zap.Int("position", queued))

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	cycleID := uuid.NewString()
	token, err := c.runCycle(ctx, cycleID)
	if err != nil {
		c.teardown(context.WithoutCancel(ctx), cycleID, err)
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.token = token
	c.lastErr = err
	c.generation++
	c.refreshing = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- outcome{token: token, err: err}
	}
	return token, err
}

func (c *Coordinator) runCycle(ctx context.Context, cycleID string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "refresh.Renew", trace.WithAttributes(
		attribute.String("dashauth.cycle_id", cycleID),
	))
	defer span.End()

	start := c.clock.Now()
	log := c.logger.With(zap.String("cycle_id", cycleID))

	c.metrics.Inc(metrics.MetricRefreshStarted)
	c.audit.Emit(ctx, audit.Event{EventType: audit.EventRefreshStarted, CycleID: cycleID, Success: true})
	log.Info("refresh started")

	rec, err := c.exchange(ctx)

	c.metrics.Observe(metrics.MetricRefreshLatency, c.clock.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		c.metrics.Inc(metrics.MetricRefreshFailure)
		c.audit.Emit(ctx, audit.Event{EventType: audit.EventRefreshFailure, CycleID: cycleID, Error: err.Error()})
		log.Warn("refresh failed", zap.Error(err))
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	c.metrics.Inc(metrics.MetricRefreshSuccess)
	event := audit.Event{EventType: audit.EventRefreshSuccess, CycleID: cycleID, Success: true}
	if rec.User != nil {
		event.UserID = rec.User.ID
	}
	c.audit.Emit(ctx, event)
	log.Info("refresh succeeded", zap.Duration("elapsed", c.clock.Since(start)))
	return rec.Token, nil
}

func (c *Coordinator) exchange(ctx context.Context) (store.Record, error) {
	current, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return store.Record{}, ErrNoSession
		}
		return store.Record{}, err
	}
	if current.RefreshToken == "" {
		return store.Record{}, ErrNoSession
	}

	pair, err := c.renewer.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return store.Record{}, err
	}

	next := store.Record{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         current.User,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := c.store.Save(ctx, next); err != nil {
		// The server already rotated; keep the new token in memory so this
		// cycle's callers still succeed.
		c.logger.Warn("persist refreshed credential", zap.Error(err))
	}
	return next, nil
}

// teardown clears stored credentials and sends the navigator to sign-in with
// the current location as callback, unless it is already there.
func (c *Coordinator) teardown(ctx context.Context, cycleID string, cause error) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("clear credential store", zap.String("cycle_id", cycleID), zap.Error(err))
	}

	location := c.nav.Location()
	c.metrics.Inc(metrics.MetricForcedLogout)
	c.audit.Emit(ctx, audit.Event{
		EventType: audit.EventForcedLogout,
		CycleID:   cycleID,
		Path:      location,
		Error:     cause.Error(),
	})

	if session.IsSignInPath(location, c.signInPath) {
		c.logger.Info("forced logout on sign-in page", zap.String("cycle_id", cycleID))
		return
	}
	target := session.SignInRedirect(c.signInPath, location)
	c.logger.Info("forced logout", zap.String("cycle_id", cycleID), zap.String("redirect", target))
	c.nav.Navigate(target)
}
