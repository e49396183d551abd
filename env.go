package dashAuth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by [LoadConfigFromEnv].
const (
	EnvSecret                = "DASHAUTH_SECRET"
	EnvInsecureSkipSignature = "DASHAUTH_INSECURE_SKIP_SIGNATURE"
	EnvSessionLifetime       = "DASHAUTH_SESSION_LIFETIME"
	EnvAPIBaseURL            = "DASHAUTH_API_BASE_URL"
	EnvSignInPath            = "DASHAUTH_SIGN_IN_PATH"
	EnvRefreshTimeout        = "DASHAUTH_REFRESH_TIMEOUT"
	EnvLogLevel              = "LOG_LEVEL"
	EnvLogDev                = "LOG_DEV"
)

// LoadConfigFromEnv loads the given .env files (default ".env"; a missing
// file is skipped), then overlays the process environment onto
// [DefaultConfig]. Variables already set in the process win over file values.
// The result is validated.
func LoadConfigFromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := defaultConfig()

	if v := os.Getenv(EnvSecret); v != "" {
		cfg.Token.Secret = []byte(v)
	}
	if v := os.Getenv(EnvInsecureSkipSignature); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvInsecureSkipSignature, err)
		}
		cfg.Token.InsecureSkipSignature = skip
	}
	if err := envDuration(EnvSessionLifetime, &cfg.Session.Lifetime); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.Refresh.APIBaseURL = v
	}
	if v := os.Getenv(EnvSignInPath); v != "" {
		cfg.Session.SignInPath = v
	}
	if err := envDuration(EnvRefreshTimeout, &cfg.Refresh.Timeout); err != nil {
		return Config{}, err
	}

	cfg.Log.Dev = os.Getenv(EnvLogDev) == "1"
	cfg.Log.Level = os.Getenv(EnvLogLevel)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		if cfg.Log.Dev {
			cfg.Log.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}
