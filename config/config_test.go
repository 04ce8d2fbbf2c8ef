package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigValidates ensures the shipped defaults pass validation.
func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultProjectConfig()
	assert.NoError(t, cfg.Validate())
}

// TestValidateRejectsBadValues exercises each validation rule with a single broken field.
func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*ProjectConfig)
	}{
		{"no rpc urls", func(c *ProjectConfig) { c.RPC.URLs = nil }},
		{"zero batch window", func(c *ProjectConfig) { c.Indexer.BatchWindow = 0 }},
		{"zero poll interval", func(c *ProjectConfig) { c.Indexer.PollIntervalSeconds = 0 }},
		{"missing db host", func(c *ProjectConfig) { c.Database.Host = "" }},
		{"bad db port", func(c *ProjectConfig) { c.Database.Port = 70000 }},
		{"bad server port", func(c *ProjectConfig) { c.Server.Port = -1 }},
		{"zero max source", func(c *ProjectConfig) { c.Verification.MaxSourceBytes = 0 }},
		{"zero verification pool", func(c *ProjectConfig) { c.Verification.WorkerPool = 0 }},
		{"zero metadata pool", func(c *ProjectConfig) { c.Metadata.WorkerPool = 0 }},
		{"zero queue capacity", func(c *ProjectConfig) { c.Metadata.QueueCapacity = 0 }},
		{"bad block reward", func(c *ProjectConfig) { c.Stats.BlockRewardWei = "0.1 ether" }},
		{"short tps window", func(c *ProjectConfig) { c.Stats.TPSWindowSeconds = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultProjectConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestReadProjectConfigOverlaysDefaults ensures values omitted from the file keep their defaults while provided
// values override them.
func TestReadProjectConfigOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "studio-indexer.json")
	data := []byte(`{"indexer": {"startBlock": 1000, "confirmations": 6}, "rpc": {"urls": ["http://10.0.0.1:8545"]}}`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), cfg.Indexer.StartBlock)
	assert.Equal(t, uint64(6), cfg.Indexer.Confirmations)
	assert.Equal(t, []string{"http://10.0.0.1:8545"}, cfg.RPC.URLs)
	// Untouched sections keep defaults
	assert.Equal(t, 8, cfg.Indexer.BatchWindow)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// TestWriteAndReadRoundTrip ensures a config written to disk reads back identically.
func TestWriteAndReadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultProjectConfig()
	cfg.Indexer.StartBlock = 77
	cfg.RPC.ChainID = 240240

	path := filepath.Join(t.TempDir(), "studio-indexer.json")
	require.NoError(t, cfg.WriteToFile(path))

	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, read)
}

// TestBlockReward ensures wei parsing of the payout constant.
func TestBlockReward(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultProjectConfig()
	assert.Equal(t, "100000000000000000", cfg.Stats.BlockReward().String())

	cfg.Stats.BlockRewardWei = "not-a-number"
	assert.Equal(t, "0", cfg.Stats.BlockReward().String())
}
