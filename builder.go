package dashAuth

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/dashAuth/jwt"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

const tracerName = "github.com/MrEthical07/dashAuth"

// Builder assembles an [Engine]. Configure it during initialization; Build may
// be called once.
type Builder struct {
	config Config

	roleTable permission.Table
	routes    session.RouteTable

	logger    *zap.Logger
	auditSink AuditSink
	clock     clockwork.Clock
	tracer    trace.Tracer

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret enables HS256 verification with secret.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	b.config.Token.InsecureSkipSignature = false
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRoleTable replaces the built-in role grants.
func (b *Builder) WithRoleTable(table permission.Table) *Builder {
	b.roleTable = append(permission.Table(nil), table...)
	return b
}

// WithRoutes replaces Session.Routes.
func (b *Builder) WithRoutes(routes session.RouteTable) *Builder {
	b.routes = append(session.RouteTable(nil), routes...)
	return b
}

// WithAuditSink sets the sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock injects the clock used for expiry checks and latency.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithTracer(tracer trace.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// Build validates the configuration and returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if b.routes != nil {
		cfg.Session.Routes = b.routes
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	routes := cfg.Session.Routes
	if routes == nil {
		routes = session.DefaultRoutes()
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := b.logger
	if logger == nil {
		l, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		logger = l
	}

	// -------- VERIFIER --------
	mode := jwt.SignatureHS256
	if cfg.Token.InsecureSkipSignature {
		mode = jwt.SignatureNone
		logger.Warn("token signature verification disabled")
	}
	verifier, err := jwt.NewVerifier(jwt.Config{
		Mode:   mode,
		Secret: cloneBytes(cfg.Token.Secret),
		Clock:  clock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// -------- RESOLVER --------
	table := b.roleTable
	if table == nil {
		table = permission.DefaultTable()
	}
	resolver, err := permission.NewResolver(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	engine := &Engine{
		config:   cfg,
		verifier: verifier,
		resolver: resolver,
		parser:   session.NewParser(verifier, resolver, cfg.Session.CookieNames),
		routes:   routes,
		logger:   logger.Named("dashauth"),
		clock:    clock,
		tracer:   tracer,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
