package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"Sales Rep", "Sales Manager", "Sales Director", "Administrator"}, cfg.Authority.Roles)
	assert.Equal(t, "default", cfg.Policy.DefaultTenant)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadRoleListFromEnv(t *testing.T) {
	t.Setenv("AUTHORITY_ROLES", " Rep , Manager,,Admin ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Rep", "Manager", "Admin"}, cfg.Authority.Roles)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "development",
			JWT:         JWTConfig{SecretKey: "s3cret"},
			Authority:   AuthorityConfig{Roles: []string{"Rep", "Manager"}},
			Tracing:     TracingConfig{SampleRatio: 1},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Environment = "production"
	cfg.JWT.SecretKey = defaultJWTSecret
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Authority.Roles = []string{"Rep", "rep"}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Authority.Roles = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tracing.SampleRatio = 1.5
	assert.Error(t, cfg.Validate())
}
