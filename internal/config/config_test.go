package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("ALGORITHM", "")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := NewConfig()

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, int32(8000), cfg.HTTP.Port)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 30, cfg.Auth.AccessTokenExpireMinutes)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Empty(t, cfg.Auth.SecretKey, "there must be no baked-in secret")
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Empty(t, cfg.HTTP.TrustedProxies, "no proxy is trusted by default")
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Development")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("ALGORITHM", "hs512")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "45")
	t.Setenv("AUTH_LOCKOUT_DURATION", "5m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 172.16.0.0/12,")

	cfg := NewConfig()

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, 45*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.HTTP.TrustedProxies)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env: EnvProduction,
			Auth: Auth{
				SecretKey:                "s3cret",
				Algorithm:                "HS256",
				AccessTokenExpireMinutes: 30,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid production config", mutate: func(c *Config) {}},
		{
			name:    "missing secret in production",
			mutate:  func(c *Config) { c.Auth.SecretKey = "" },
			wantErr: ErrSecretRequired,
		},
		{
			name:    "whitespace secret in production",
			mutate:  func(c *Config) { c.Auth.SecretKey = "   " },
			wantErr: ErrSecretRequired,
		},
		{
			name: "missing secret tolerated in development",
			mutate: func(c *Config) {
				c.Env = EnvDevelopment
				c.Auth.SecretKey = ""
			},
		},
		{
			name:    "asymmetric algorithm rejected",
			mutate:  func(c *Config) { c.Auth.Algorithm = "RS256" },
			wantErr: ErrUnsupportedAlgorithm,
		},
		{
			name:   "trusted proxies accept addresses and ranges",
			mutate: func(c *Config) { c.HTTP.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12", "::1"} },
		},
		{
			name:    "malformed trusted proxy rejected",
			mutate:  func(c *Config) { c.HTTP.TrustedProxies = []string{"proxy.internal"} },
			wantErr: ErrInvalidTrustedProxy,
		},
		{
			name:    "zero lifetime rejected",
			mutate:  func(c *Config) { c.Auth.AccessTokenExpireMinutes = 0 },
			wantErr: ErrInvalidTokenLifetime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}
