package dashAuth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/dashAuth/session"
)

// Config is the complete engine configuration. Start from [DefaultConfig] and
// override fields; Build validates it.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
	Refresh RefreshConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Log     LogConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls access-token verification.
//
// Secret enables HS256 signature checks. InsecureSkipSignature trusts any
// structurally valid token and must be set explicitly when Secret is empty;
// setting both is rejected.
type TokenConfig struct {
	Secret                []byte
	InsecureSkipSignature bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls cookie parsing and route gating.
type SessionConfig struct {
	// Lifetime is the Max-Age of the session cookies.
	Lifetime    time.Duration
	CookieNames session.CookieNames
	SignInPath  string
	// Routes gates request paths by role. Nil uses session.DefaultRoutes.
	Routes session.RouteTable
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the client-side refresh coordinator.
type RefreshConfig struct {
	// APIBaseURL is the remote API root; the refresh call goes to
	// APIBaseURL + Path.
	APIBaseURL string
	Path       string
	// Timeout bounds one renewal, including the refresh HTTP call.
	Timeout time.Duration
}

// StoreConfig controls the Redis-backed credential store.
type StoreConfig struct {
	RedisPrefix string
	// RecordTTL expires stored records; zero keeps them until cleared.
	RecordTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the dashboard defaults. Token verification is left
// unconfigured; callers must supply a secret or opt out explicitly.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Lifetime:    7 * 24 * time.Hour,
			CookieNames: session.DefaultCookieNames(),
			SignInPath:  "/auth/sign-in",
		},
		Refresh: RefreshConfig{
			Path:    "/auth/refresh",
			Timeout: 15 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix: "dashauth:client",
			RecordTTL:   7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	if cfg.Session.Routes != nil {
		out.Session.Routes = append(session.RouteTable(nil), cfg.Session.Routes...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) == 0 && !c.Token.InsecureSkipSignature {
		return invalid("Token Secret is required unless InsecureSkipSignature is set")
	}
	if len(c.Token.Secret) > 0 && c.Token.InsecureSkipSignature {
		return invalid("Token Secret and InsecureSkipSignature are mutually exclusive")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return invalid("Session Lifetime must be > 0")
	}
	names := c.Session.CookieNames
	if names.Token == "" || names.Roles == "" || names.Permissions == "" {
		return invalid("Session CookieNames must all be set")
	}
	if names.Token == names.Roles || names.Token == names.Permissions || names.Roles == names.Permissions {
		return invalid("Session CookieNames must be distinct")
	}
	if !strings.HasPrefix(c.Session.SignInPath, "/") {
		return invalid("Session SignInPath must be an absolute path")
	}
	for i, rule := range c.Session.Routes {
		if !strings.HasPrefix(rule.Prefix, "/") {
			return invalid(fmt.Sprintf("Session Routes[%d] prefix must start with /", i))
		}
		if len(rule.Roles) == 0 {
			return invalid(fmt.Sprintf("Session Routes[%d] must allow at least one role", i))
		}
	}

	// Refresh
	if c.Refresh.APIBaseURL != "" {
		u, err := url.Parse(c.Refresh.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("Refresh APIBaseURL must be an absolute URL")
		}
	}
	if !strings.HasPrefix(c.Refresh.Path, "/") {
		return invalid("Refresh Path must be an absolute path")
	}
	if c.Refresh.Timeout < 0 {
		return invalid("Refresh Timeout must be >= 0")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return invalid("Store RedisPrefix must be set")
	}
	if c.Store.RecordTTL < 0 {
		return invalid("Store RecordTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0 when enabled")
	}

	// Log
	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid(err.Error())
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
