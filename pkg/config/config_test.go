package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PORTAL_DB_DRIVER", "sqlite3")
	t.Setenv("PORTAL_DB_DSN", "portal.db")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Server.SecureCookies)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Empty(t, cfg.Redis.URL)
	assert.False(t, cfg.OIDC.Configured())
	assert.Empty(t, cfg.DevAccounts.File)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_PORT", "3000")
	t.Setenv("PORTAL_SECURE_COOKIES", "false")
	t.Setenv("PORTAL_READ_TIMEOUT", "5s")
	t.Setenv("PORTAL_LOG_LEVEL", "debug")
	t.Setenv("PORTAL_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.False(t, cfg.Server.SecureCookies)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadConfig_MissingDSN(t *testing.T) {
	t.Setenv("PORTAL_DB_DRIVER", "postgres")
	t.Setenv("PORTAL_DB_DSN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	t.Setenv("PORTAL_DB_DRIVER", "mysql")
	t.Setenv("PORTAL_DB_DSN", "whatever")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_PartialOIDCFailsFast(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("PORTAL_OIDC_CLIENT_ID", "portal")
	// secret and redirect URL missing

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_CompleteOIDC(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("PORTAL_OIDC_CLIENT_ID", "portal")
	t.Setenv("PORTAL_OIDC_CLIENT_SECRET", "secret")
	t.Setenv("PORTAL_OIDC_REDIRECT_URL", "https://portal.example.com/api/callback")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.OIDC.Configured())
}

func TestLoadConfig_SamePortsRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORTAL_PORT", "8080")
	t.Setenv("PORTAL_HEALTH_PORT", "8080")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadDevAccounts_EmptyPath(t *testing.T) {
	accounts, err := LoadDevAccounts("")
	require.NoError(t, err)
	assert.Nil(t, accounts)
}

func TestLoadDevAccounts_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	content := `accounts:
  - email: admin@mindrush.com
    password: $omeRandomPass*
    firstName: Admin
    lastName: User
  - email: tester@mindrush.com
    password: pw2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	accounts, err := LoadDevAccounts(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "admin@mindrush.com", accounts[0].Email)
	assert.Equal(t, "$omeRandomPass*", accounts[0].Password)
	assert.Equal(t, "Admin", accounts[0].FirstName)
}

func TestLoadDevAccounts_MissingFile(t *testing.T) {
	_, err := LoadDevAccounts(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDevAccounts_AccountWithoutEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - password: pw\n"), 0600))

	_, err := LoadDevAccounts(path)
	assert.Error(t, err)
}

func TestWatchDevAccounts_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - email: a@b.com\n"), 0600))

	changes := make(chan int, 4)
	logger := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	stop, err := WatchDevAccounts(path, func(accounts []auth.DevAccount) {
		changes <- len(accounts)
	}, logger)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - email: a@b.com\n  - email: c@d.com\n"), 0600))

	select {
	case n := <-changes:
		assert.Equal(t, 2, n)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}
