package dashAuth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/dashAuth/internal/audit"
	"github.com/MrEthical07/dashAuth/jwt"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/refresh"
	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/store"
)

// Engine ties token verification, session parsing, route gating and refresh
// coordination to one configuration. It is immutable after Build and safe for
// concurrent use.
type Engine struct {
	config   Config
	verifier *jwt.Verifier
	resolver *permission.Resolver
	parser   *session.Parser
	routes   session.RouteTable

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *zap.Logger
	clock   clockwork.Clock
	tracer  trace.Tracer
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live metric set for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger {
	if e == nil {
		return zap.NewNop()
	}
	return e.logger
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock.Now().UTC()
	}
	e.audit.Emit(ctx, event)
}

/*
====================================
VERIFY / PARSE / AUTHORIZE
====================================
*/

// VerifyToken classifies and checks raw. See [jwt.Verifier.Verify].
func (e *Engine) VerifyToken(raw string) VerifyResult {
	return e.verifier.Verify(raw)
}

// Resolver returns the frozen role table.
func (e *Engine) Resolver() *permission.Resolver {
	return e.resolver
}

// ParseSession builds a session from src.
func (e *Engine) ParseSession(ctx context.Context, src session.Source) Parsed {
	return e.parse(ctx, src, "")
}

// ParseRequest builds a session from the request cookies.
func (e *Engine) ParseRequest(r *http.Request) Parsed {
	ctx, span := e.tracer.Start(r.Context(), "dashauth.ParseRequest", trace.WithAttributes(e.traceAttrs()...))
	defer span.End()

	parsed := e.parse(ctx, session.FromRequest(r), r.URL.Path)
	switch p := parsed.(type) {
	case Authenticated:
		span.SetAttributes(attribute.Bool("dashauth.authenticated", true))
	case Unauthenticated:
		span.SetAttributes(
			attribute.Bool("dashauth.authenticated", false),
			attribute.String("dashauth.reason", string(p.Reason)),
		)
	}
	return parsed
}

func (e *Engine) parse(ctx context.Context, src session.Source, path string) Parsed {
	start := e.clock.Now()
	parsed := e.parser.Parse(src)
	e.metrics.Observe(MetricParseLatency, e.clock.Since(start))

	switch p := parsed.(type) {
	case Authenticated:
		e.metrics.Inc(MetricSessionAuthenticated)
	case Unauthenticated:
		e.metrics.Inc(reasonMetric(p.Reason))
		// Anonymous traffic is the common case; only rejected credentials are audited.
		if p.Reason != session.ReasonMissingToken {
			e.emitAudit(ctx, AuditEvent{
				EventType: AuditSessionRejected,
				Path:      path,
				Reason:    string(p.Reason),
			})
			e.logger.Debug("session rejected", zap.String("reason", string(p.Reason)), zap.String("path", path))
		}
	}
	return parsed
}

func reasonMetric(reason session.Reason) MetricID {
	switch reason {
	case session.ReasonMissingToken:
		return MetricSessionMissingToken
	case session.ReasonTokenExpired:
		return MetricSessionTokenExpired
	case session.ReasonSignatureMismatch:
		return MetricSessionSignatureMismatch
	case session.ReasonMissingRoles:
		return MetricSessionMissingRoles
	default:
		return MetricSessionInvalidPayload
	}
}

// Authorize gates path for parsed using the configured route table.
func (e *Engine) Authorize(ctx context.Context, parsed Parsed, path string) Decision {
	decision := e.routes.Authorize(parsed, path)
	if decision == DecisionForbidden {
		e.metrics.Inc(MetricRouteForbidden)
		event := AuditEvent{EventType: AuditRouteForbidden, Path: path}
		if auth, ok := parsed.(Authenticated); ok {
			event.UserID = auth.Session.User.ID
			event.Metadata = map[string]string{"roles": session.EncodeList(permission.RoleStrings(auth.Session.User.Roles))}
		}
		e.emitAudit(ctx, event)
	}
	return decision
}

// AllowedRoles reports the roles admitted to path; restricted is false when no
// rule matches.
func (e *Engine) AllowedRoles(path string) (roles []Role, restricted bool) {
	return e.routes.AllowedRoles(path)
}

/*
====================================
COOKIES / REDIRECTS
====================================
*/

// SignInRedirect returns the sign-in URL with callback as callbackUrl.
func (e *Engine) SignInRedirect(callback string) string {
	return session.SignInRedirect(e.config.Session.SignInPath, callback)
}

func (e *Engine) SignInPath() string {
	return e.config.Session.SignInPath
}

func (e *Engine) CookieNames() session.CookieNames {
	return e.parser.CookieNames()
}

// SessionCookies returns the cookies written after sign-in or refresh.
func (e *Engine) SessionCookies(rec store.Record) []*http.Cookie {
	return store.SessionCookies(rec, e.CookieNames(), e.config.Session.Lifetime)
}

// ExpiredCookies returns cookies that delete every session cookie.
func (e *Engine) ExpiredCookies() []*http.Cookie {
	return store.ExpiredCookies(e.CookieNames())
}

/*
====================================
REFRESH
====================================
*/

// NewCoordinator returns a refresh coordinator posting to
// Refresh.APIBaseURL + Refresh.Path. A nil nav never navigates.
func (e *Engine) NewCoordinator(creds store.CredentialStore, nav refresh.Navigator) (*refresh.Coordinator, error) {
	if e.config.Refresh.APIBaseURL == "" {
		return nil, ErrMissingAPIBaseURL
	}
	client := refresh.NewClient(e.config.Refresh.APIBaseURL, e.config.Refresh.Path, &http.Client{})
	return e.NewCoordinatorWith(creds, client, nav)
}

// NewCoordinatorWith is NewCoordinator with a caller-supplied renewer.
func (e *Engine) NewCoordinatorWith(creds store.CredentialStore, renewer refresh.Renewer, nav refresh.Navigator) (*refresh.Coordinator, error) {
	opts := refresh.Options{
		Store:       creds,
		Renewer:     renewer,
		Navigator:   nav,
		SignInPath:  e.config.Session.SignInPath,
		RefreshPath: e.refreshPath(),
		Timeout:     e.config.Refresh.Timeout,
		Logger:      e.logger,
		Metrics:     e.metrics,
		Tracer:      e.tracer,
		Clock:       e.clock,
	}
	if e.audit != nil {
		opts.Audit = e.audit
	}
	c, err := refresh.NewCoordinator(opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("refresh coordinator ready",
		zap.String("refresh_path", opts.RefreshPath),
		zap.Duration("timeout", e.config.Refresh.Timeout),
	)
	return c, nil
}

// refreshPath is the request path of the refresh endpoint, including any path
// carried by Refresh.APIBaseURL.
func (e *Engine) refreshPath() string {
	base, err := url.Parse(e.config.Refresh.APIBaseURL)
	if err != nil {
		return e.config.Refresh.Path
	}
	return strings.TrimSuffix(base.Path, "/") + e.config.Refresh.Path
}

// NewRedisStore returns the credential store for clientID in rdb.
func (e *Engine) NewRedisStore(rdb redis.UniversalClient, clientID string) *store.RedisStore {
	return store.NewRedisStore(rdb, e.config.Store.RedisPrefix, clientID, e.config.Store.RecordTTL)
}

// NewCookieStore returns a credential store backed by jar, scoped to
// Refresh.APIBaseURL.
func (e *Engine) NewCookieStore(jar http.CookieJar) (*store.CookieStore, error) {
	if e.config.Refresh.APIBaseURL == "" {
		return nil, ErrMissingAPIBaseURL
	}
	u, err := url.Parse(e.config.Refresh.APIBaseURL)
	if err != nil {
		return nil, err
	}
	return store.NewCookieStore(jar, u, e.CookieNames(), e.config.Session.Lifetime), nil
}

func (e *Engine) traceAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("dashauth.sign_in_path", e.config.Session.SignInPath),
		attribute.Bool("dashauth.signature_checked", e.verifier.Mode() == jwt.SignatureHS256),
	}
}
