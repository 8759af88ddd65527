package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database:
  host: db.internal
  user: notifier
  name: crm
jobs:
  dispatch_rate: 2.5
security:
  credential_key: file-secret
`

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(sampleConfig), 0o600))

	t.Setenv("NOTIFIER_SECURITY_CREDENTIAL_KEY", "env-secret")
	t.Setenv("NOTIFIER_JOBS_LOCK_TTL", "90s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 2.5, cfg.Jobs.DispatchRate)
	assert.Equal(t, "env-secret", cfg.Security.CredentialKey)
	assert.Equal(t, 90*time.Second, cfg.Jobs.LockTTL)
	assert.Equal(t, "@every 1m", cfg.Jobs.EvaluateSchedule)

	loc, err := cfg.Jobs.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsMissingCredentialKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("database:\n  user: u\n  name: n\n"), 0o600))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "CredentialKey")
}
