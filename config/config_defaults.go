package config

import (
	"math/big"

	"github.com/rs/zerolog"
)

// DefaultProjectConfigFilename is the file name a project configuration is read from when no explicit path is given.
const DefaultProjectConfigFilename = "studio-indexer.json"

// GetDefaultProjectConfig obtains the default configuration for an indexer deployment.
func GetDefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		RPC: RPCConfig{
			URLs:    []string{"http://127.0.0.1:8545"},
			ChainID: 0,
		},
		Indexer: IndexerConfig{
			StartBlock:          0,
			Confirmations:       12,
			BatchWindow:         8,
			PollIntervalSeconds: 2,
		},
		Database: DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         5432,
			Database:     "studio_indexer",
			User:         "postgres",
			Password:     "",
			MaxOpenConns: 32,
			MaxIdleConns: 8,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    3000,
		},
		Verification: VerificationConfig{
			MaxSourceBytes: 20 * 1024 * 1024,
			WorkerPool:     2,
			SolcDirectory:  "",
			CachePath:      "",
			ReleaseListURL: "https://binaries.soliditylang.org/linux-amd64/list.json",
		},
		Metadata: MetadataConfig{
			WorkerPool:    4,
			QueueCapacity: 1024,
			IPFSGateway:   "https://ipfs.io/ipfs/",
		},
		Stats: StatsConfig{
			// 0.1 ether per block
			BlockRewardWei:   "100000000000000000",
			TPSWindowSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:                zerolog.InfoLevel,
			EnableConsoleLogging: true,
			LogDirectory:         "",
		},
	}
}

// parseDecimalString parses a base-10 non-negative integer string into a big.Int. Returns the value and whether
// parsing succeeded.
func parseDecimalString(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// BlockReward returns the configured per-block validator reward in wei. The value is validated at config load, so an
// unparsable value simply yields zero here.
func (s *StatsConfig) BlockReward() *big.Int {
	v, ok := parseDecimalString(s.BlockRewardWei)
	if !ok {
		return new(big.Int)
	}
	return v
}
