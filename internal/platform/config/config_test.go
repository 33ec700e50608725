package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, errs := Load("")
	require.Empty(t, errs)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.InDelta(t, 0.8, cfg.Policy.Threshold, 1e-9)
	assert.Equal(t, 10, cfg.Policy.RequiredSessions)
	assert.Equal(t, "presence.audit", cfg.Kafka.AuditTopic)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, errs := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Empty(t, errs)
	assert.Equal(t, 10, cfg.Policy.RequiredSessions)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  request_timeout: 3s
policy:
  threshold: 0.75
  required_sessions: 12
redis:
  url: redis://localhost:6379/0
`)

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.InDelta(t, 0.75, cfg.Policy.Threshold, 1e-9)
	assert.Equal(t, 12, cfg.Policy.RequiredSessions)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	// untouched keys keep defaults
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeFile(t, "policy:\n  required_sessions: 12\n")
	t.Setenv("PRESENCE_POLICY_REQUIRED_SESSIONS", "20")
	t.Setenv("PRESENCE_POLICY_THRESHOLD", "0.9")

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, 20, cfg.Policy.RequiredSessions)
	assert.InDelta(t, 0.9, cfg.Policy.Threshold, 1e-9)
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("PRESENCE_ENV", "production")
	t.Setenv("PRESENCE_POLICY_THRESHOLD", "1.5")
	t.Setenv("PRESENCE_POLICY_REQUIRED_SESSIONS", "0")
	t.Setenv("PRESENCE_DATABASE_URL", "mysql://nope")

	_, errs := Load("")

	assert.ElementsMatch(t, []error{
		ErrInvalidThreshold,
		ErrInvalidRequiredSessions,
		ErrMissingPassphrase,
		ErrDevAdminSecret,
		ErrInvalidDatabaseURL,
	}, errs)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("PRESENCE_POLICY_REQUIRED_SESSIONS", "ten")
	_, errs := Load("")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "PRESENCE_POLICY_REQUIRED_SESSIONS")
}

func TestPassphrase(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.Passphrase(), "dev gets a fixed passphrase")

	cfg.Server.Environment = "production"
	assert.Empty(t, cfg.Passphrase())

	cfg.Issuer.Passphrase = "s3cret"
	assert.Equal(t, "s3cret", cfg.Passphrase())
}

func TestTrustedPeers(t *testing.T) {
	t.Setenv("PRESENCE_ISSUER_TRUSTED_PEERS", " did:key:z6MkPeerA, did:key:z6MkPeerB,did:key:z6MkPeerA ")

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Equal(t, []string{"did:key:z6MkPeerA", "did:key:z6MkPeerB"}, cfg.TrustedPeers())

	cfg.Issuer.TrustedPeers = "did:web:example.org"
	assert.Contains(t, cfg.Validate(), ErrInvalidTrustedPeer)
}
