package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Environment string

const (
	EnvDevelopment Environment = "development" // Allows an ephemeral signing secret
	EnvProduction  Environment = "production"  // Requires SECRET_KEY (default)
)

// SupportedAlgorithms lists the HMAC signing algorithms accepted for session tokens.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

var (
	ErrSecretRequired       = errors.New("SECRET_KEY must be set outside development")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidTokenLifetime = errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	ErrInvalidTrustedProxy  = errors.New("TRUSTED_PROXIES entries must be IP addresses or CIDR ranges")
)

type (
	Config struct {
		Env Environment
		HTTP
		Global
		Database
		Auth
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
		// Proxies whose X-Forwarded-For is believed when resolving the client
		// IP for login throttling. Empty trusts none.
		TrustedProxies []string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Auth struct {
		SecretKey                string
		Algorithm                string
		AccessTokenExpireMinutes int
		BcryptCost               int

		// Login throttling
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 90)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
		ArchiveDir      string // Expired events are written here as JSON before deletion; empty disables
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// AccessTokenTTL returns the configured login token lifetime.
func (a Auth) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// IsDevelopment reports whether the process runs in the development posture.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Validate checks the settings the process cannot start without.
// An empty secret is only tolerated in development, where the caller is
// expected to generate an ephemeral one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" && !c.IsDevelopment() {
		return ErrSecretRequired
	}
	if !IsSupportedAlgorithm(c.Auth.Algorithm) {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return ErrInvalidTokenLifetime
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, proxy)
			}
		}
	}
	return nil
}

// IsSupportedAlgorithm reports whether alg is one of SupportedAlgorithms.
func IsSupportedAlgorithm(alg string) bool {
	for _, a := range SupportedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", string(EnvProduction))
	v.SetDefault("port", 8000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults. SECRET_KEY intentionally has none.
	v.SetDefault("algorithm", "HS256")
	v.SetDefault("access_token_expire_minutes", 30)
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")
	v.SetDefault("audit_archive_dir", "")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		Env: Environment(strings.ToLower(v.GetString("APP_ENV"))),
		HTTP: HTTP{
			Port:           v.GetInt32("PORT"),
			Host:           v.GetString("HOST"),
			TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			SecretKey:                v.GetString("SECRET_KEY"),
			Algorithm:                strings.ToUpper(v.GetString("ALGORITHM")),
			AccessTokenExpireMinutes: v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"),
			BcryptCost:               v.GetInt("AUTH_BCRYPT_COST"),
			MaxLoginAttempts:         v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:          v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:          v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
			ArchiveDir:      v.GetString("AUDIT_ARCHIVE_DIR"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
