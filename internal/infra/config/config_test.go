package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultRPCURL, cfg.Solana.RPCURL)
	assert.Equal(t, "confirmed", cfg.Solana.Commitment)
	assert.Equal(t, 500*time.Millisecond, cfg.Solana.PollInterval)
	assert.Equal(t, uint64(26000), cfg.Solana.PriorityFeeMicroLamports)
	assert.Zero(t, cfg.Issuance.AnchorRefreshAttempts)
	assert.False(t, cfg.Issuance.PrecheckHoldingAccount)
	assert.Equal(t, JournalNone, cfg.Journal.Backend)
	assert.Equal(t, PublisherNone, cfg.Metadata.Publisher)
	assert.False(t, cfg.NotifyEnabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
solana:
  rpc_url: http://127.0.0.1:8899
  commitment: Finalized
  poll_interval: 50ms
issuance:
  precheck_holding_account: true
journal:
  backend: postgres
  postgres_dsn: postgres://localhost/mint?sslmode=disable
notify:
  sendgrid_api_key: SG.x
  from: mint@narratives.example
  to: ["ops@narratives.example"]
`), 0o600))

	t.Setenv("DEVNET_URL", "https://devnet.helius.example")
	t.Setenv("SECRET_KEY", "4Z7cXSyeFR8wNGMVXUE1TwtKn5D5Vu7FzEv69dokLv7K")
	t.Setenv("ISSUANCE_NOTIFY_TO", "a@narratives.example, b@narratives.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://devnet.helius.example", cfg.Solana.RPCURL)
	assert.Equal(t, "finalized", cfg.Solana.Commitment)
	assert.Equal(t, 50*time.Millisecond, cfg.Solana.PollInterval)
	assert.True(t, cfg.Issuance.PrecheckHoldingAccount)
	assert.Equal(t, "4Z7cXSyeFR8wNGMVXUE1TwtKn5D5Vu7FzEv69dokLv7K", cfg.Keys.Secret)
	assert.Equal(t, JournalPostgres, cfg.Journal.Backend)
	assert.Equal(t, []string{"a@narratives.example", "b@narratives.example"}, cfg.Notify.To)
	assert.True(t, cfg.NotifyEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"rpc scheme", func(c *Config) { c.Solana.RPCURL = "api.devnet.solana.com" }},
		{"commitment", func(c *Config) { c.Solana.Commitment = "max" }},
		{"poll", func(c *Config) { c.Solana.PollInterval = 0 }},
		{"refresh", func(c *Config) { c.Issuance.AnchorRefreshAttempts = -1 }},
		{"concurrency", func(c *Config) { c.Issuance.BatchConcurrency = 0 }},
		{"postgres dsn", func(c *Config) { c.Journal.Backend = JournalPostgres }},
		{"firestore project", func(c *Config) { c.Journal.Backend = JournalFirestore; c.GCP.ProjectID = "" }},
		{"journal backend", func(c *Config) { c.Journal.Backend = "mysql" }},
		{"gcs bucket", func(c *Config) { c.Metadata.Publisher = PublisherGCS; c.Metadata.GCSBucket = "my bucket" }},
		{"irys url", func(c *Config) { c.Metadata.Publisher = PublisherIrys }},
		{"publisher", func(c *Config) { c.Metadata.Publisher = "ipfs" }},
		{"sendgrid recipients", func(c *Config) { c.Notify.SendGridAPIKey = "SG.x" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
