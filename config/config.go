package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProjectConfig describes the top-level configuration of an indexer deployment. It is read from a JSON file at
// startup and individual values may be overridden by CLI flags.
type ProjectConfig struct {
	// RPC describes the configuration used to reach the chain's JSON-RPC endpoints.
	RPC RPCConfig `json:"rpc"`

	// Indexer describes the configuration used by the block ingestor.
	Indexer IndexerConfig `json:"indexer"`

	// Database describes the PostgreSQL connection parameters.
	Database DatabaseConfig `json:"db"`

	// Server describes the configuration of the HTTP API.
	Server ServerConfig `json:"server"`

	// Verification describes the configuration used by the contract source verification engine.
	Verification VerificationConfig `json:"verification"`

	// Metadata describes the configuration used by the NFT metadata resolver.
	Metadata MetadataConfig `json:"metadata"`

	// Stats describes the configuration for derived chain statistics.
	Stats StatsConfig `json:"stats"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"logging"`
}

// RPCConfig describes the upstream JSON-RPC endpoints the indexer reads from.
type RPCConfig struct {
	// URLs is the ordered list of endpoint URLs the client pool rotates through. At least one is required.
	URLs []string `json:"urls"`

	// ChainID is the expected chain id, checked against eth_chainId on startup. A zero value disables the check.
	ChainID uint64 `json:"chainId"`
}

// IndexerConfig describes the configuration options used by the block ingestor.
type IndexerConfig struct {
	// StartBlock is the lowest height to index.
	StartBlock uint64 `json:"startBlock"`

	// Confirmations describes how far behind the chain head the ingestor trails to reduce reorg exposure.
	Confirmations uint64 `json:"confirmations"`

	// BatchWindow bounds how many blocks may be in flight between fetch and persist.
	BatchWindow int `json:"batchWindow"`

	// PollIntervalSeconds is the idle sleep when the cursor has caught up with the safe height.
	PollIntervalSeconds int `json:"pollInterval"`
}

// DatabaseConfig describes the PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`

	// MaxOpenConns bounds the connection pool. Zero means the driver default.
	MaxOpenConns int `json:"maxOpenConns"`

	// MaxIdleConns bounds idle pooled connections. Zero means the driver default.
	MaxIdleConns int `json:"maxIdleConns"`
}

// ServerConfig describes the configuration of the HTTP API.
type ServerConfig struct {
	// Enabled describes whether the HTTP API should be served at all.
	Enabled bool `json:"enabled"`

	// Port is the TCP port the API listens on.
	Port int `json:"port"`
}

// VerificationConfig describes the configuration used by the contract source verification engine.
type VerificationConfig struct {
	// MaxSourceBytes caps the total size of submitted source code.
	MaxSourceBytes int `json:"maxSourceBytes"`

	// WorkerPool bounds how many verification requests may compile concurrently. Requests beyond the bound are
	// rejected as busy.
	WorkerPool int `json:"workerPool"`

	// SolcDirectory is where downloaded compiler binaries are kept. If empty, a directory under the user home is used.
	SolcDirectory string `json:"solcDirectory"`

	// CachePath is the location of the verification artifact cache database. If empty, a file under SolcDirectory
	// is used.
	CachePath string `json:"cachePath"`

	// ReleaseListURL is where the official solc release list is fetched from.
	ReleaseListURL string `json:"releaseListUrl"`
}

// MetadataConfig describes the configuration used by the NFT metadata resolver.
type MetadataConfig struct {
	// WorkerPool is the number of workers draining the metadata queue.
	WorkerPool int `json:"workerPool"`

	// QueueCapacity bounds the metadata queue. The oldest entry is dropped on overflow.
	QueueCapacity int `json:"queueCapacity"`

	// IPFSGateway is the HTTP gateway ipfs:// URIs are rewritten to.
	IPFSGateway string `json:"ipfsGateway"`
}

// StatsConfig describes the configuration for derived chain statistics.
type StatsConfig struct {
	// BlockRewardWei is the per-block validator reward used by the payout endpoint, as a decimal wei string.
	BlockRewardWei string `json:"blockRewardWei"`

	// TPSWindowSeconds is the lookback window for the transactions-per-second statistic. Minimum 60.
	TPSWindowSeconds int `json:"tpsWindowSeconds"`
}

// LoggingConfig describes the configuration options used for logging.
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	Level zerolog.Level `json:"level"`

	// EnableConsoleLogging describes whether console logging is enabled.
	EnableConsoleLogging bool `json:"enableConsoleLogging"`

	// LogDirectory describes the directory where structured log files will be written. If empty, no log files are kept.
	LogDirectory string `json:"logDirectory"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Overlay the file contents on top of the defaults so that omitted keys keep their default values
	projectConfig := GetDefaultProjectConfig()
	err = json.Unmarshal(b, projectConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	// At least one RPC endpoint is required for any indexing to happen
	if len(p.RPC.URLs) == 0 {
		return errors.Errorf("at least one rpc endpoint url must be provided")
	}

	// Verify the in-flight fetch window is a positive number
	if p.Indexer.BatchWindow <= 0 {
		return errors.Errorf("indexer batch window must be a positive number")
	}

	// Verify the poll interval is a positive number
	if p.Indexer.PollIntervalSeconds <= 0 {
		return errors.Errorf("indexer poll interval must be a positive number")
	}

	// Verify the database connection parameters are present
	if p.Database.Host == "" || p.Database.Database == "" || p.Database.User == "" {
		return errors.Errorf("database host, database and user must be provided")
	}
	if p.Database.Port <= 0 || p.Database.Port > 65535 {
		return errors.Errorf("database port must be between 1 and 65535")
	}

	// Verify the API port when the API is enabled
	if p.Server.Enabled && (p.Server.Port <= 0 || p.Server.Port > 65535) {
		return errors.Errorf("server port must be between 1 and 65535")
	}

	// Verify verification engine limits
	if p.Verification.MaxSourceBytes <= 0 {
		return errors.Errorf("verification max source bytes must be a positive number")
	}
	if p.Verification.WorkerPool <= 0 {
		return errors.Errorf("verification worker pool must be a positive number")
	}

	// Verify metadata resolver limits
	if p.Metadata.WorkerPool <= 0 {
		return errors.Errorf("metadata worker pool must be a positive number")
	}
	if p.Metadata.QueueCapacity <= 0 {
		return errors.Errorf("metadata queue capacity must be a positive number")
	}

	// Verify the block reward parses as a non-negative decimal integer
	if _, ok := parseDecimalString(p.Stats.BlockRewardWei); !ok {
		return errors.Errorf("stats block reward must be a decimal wei string")
	}

	// Verify the TPS window meets the minimum
	if p.Stats.TPSWindowSeconds < 60 {
		return errors.Errorf("stats tps window must be at least 60 seconds")
	}

	return nil
}
