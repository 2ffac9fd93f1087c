package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/axle/pkg/auth"
	"github.com/platinummonkey/axle/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AXLE_DATA_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "roles.xml", cfg.Registry.RolesFile)
	assert.Equal(t, "users.xml", cfg.Registry.UsersFile)
	assert.True(t, cfg.Registry.ValidateSchema)
	assert.False(t, cfg.Registry.StrictReferences)
	assert.Equal(t, 10*time.Second, cfg.Registry.CheckInterval)
	assert.Equal(t, "ADMIN", cfg.Registry.AdminRole)
	assert.Equal(t, "GROUP_ADMIN", cfg.Registry.GroupAdminRole)
	assert.Equal(t, auth.EncoderDigest, cfg.Security.PasswordEncoder)
	assert.Equal(t, 8, cfg.Security.Policy.MinLength)
	assert.True(t, cfg.Security.Guard.Enabled)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AXLE_DATA_DIR", t.TempDir())
	t.Setenv("AXLE_PORT", "9090")
	t.Setenv("AXLE_CHECK_INTERVAL", "30s")
	t.Setenv("AXLE_PASSWORD_ENCODER", "plain")
	t.Setenv("AXLE_STRICT_REFERENCES", "true")
	t.Setenv("AXLE_BRUTEFORCE_MIN_DELAY", "2s")
	t.Setenv("AXLE_BRUTEFORCE_MAX_DELAY", "8s")
	t.Setenv("AXLE_BRUTEFORCE_MAX_BLOCKED", "25")
	t.Setenv("AXLE_BRUTEFORCE_WHITELIST", "10.0.0.0/8, 192.0.2.15")
	t.Setenv("AXLE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Registry.CheckInterval)
	assert.True(t, cfg.Registry.StrictReferences)
	assert.Equal(t, auth.EncoderPlain, cfg.Security.PasswordEncoder)
	assert.Equal(t, 2*time.Second, cfg.Security.Guard.MinDelay)
	assert.Equal(t, 8*time.Second, cfg.Security.Guard.MaxDelay)
	assert.Equal(t, 25, cfg.Security.Guard.MaxBlockedThreads)
	assert.Len(t, cfg.Security.Guard.Whitelist, 2)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_MissingDataDir(t *testing.T) {
	t.Setenv("AXLE_DATA_DIR", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidWhitelist(t *testing.T) {
	t.Setenv("AXLE_DATA_DIR", t.TempDir())
	t.Setenv("AXLE_BRUTEFORCE_WHITELIST", "not-a-network")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080"},
			Registry: RegistryConfig{
				DataDir:   "/var/lib/axle",
				RolesFile: "roles.xml",
				UsersFile: "users.xml",
			},
			Security: SecurityConfig{
				PasswordEncoder: auth.EncoderDigest,
				Guard:           auth.DefaultGuardConfig(),
			},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Registry.UsersFile = cfg.Registry.RolesFile
	assert.Error(t, cfg.Validate(), "shared data file must be rejected")

	cfg = base()
	cfg.Security.PasswordEncoder = "rot13"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Registry.CheckInterval = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Security.Guard.MaxDelay = 0
	cfg.Security.Guard.MinDelay = time.Second
	assert.Error(t, cfg.Validate())
}
