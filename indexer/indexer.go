package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/chain/rpc"
	"github.com/studio-blockchain/studio-indexer/classifier"
	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/decoder"
	"github.com/studio-blockchain/studio-indexer/events"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/metadata"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/verification"
)

// Indexer owns every component of a running deployment: the RPC client pool, the store, the log decoder, the
// contract classifier, the metadata resolver, and the verification engine. It drives the block ingestion loop and
// exposes the query facade the HTTP API is built on.
type Indexer struct {
	// config describes the deployment configuration.
	config *config.ProjectConfig

	// logger receives indexer log events.
	logger *logging.Logger

	// pool is the failover JSON-RPC client pool.
	pool *rpc.ClientPool

	// store is the PostgreSQL persistence layer.
	store *store.Store

	// decoder turns receipt logs into token transfers.
	decoder *decoder.Decoder

	// classifier infers token standards of deployed contracts.
	classifier *classifier.Classifier

	// metadata resolves NFT metadata off the ingestion path.
	metadata *metadata.Resolver

	// verifier proves submitted source against deployed bytecode.
	verifier *verification.Engine

	// Events are the ingestion lifecycle emitters.
	Events events.IndexerEvents

	// ctx and ctxCancelFunc describe the indexer run lifetime; Stop cancels the context.
	ctx           context.Context
	ctxCancelFunc context.CancelFunc

	// stopOnce guards shutdown.
	stopOnce sync.Once
}

// NewIndexer constructs every component from the provided configuration. No network or database connection is made
// until Start is called, except for the database connection required to apply the schema.
func NewIndexer(cfg config.ProjectConfig) (*Indexer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.GlobalLogger.NewSubLogger("module", "indexer")

	pool, err := rpc.NewClientPool(cfg.RPC.URLs, logging.GlobalLogger)
	if err != nil {
		return nil, err
	}

	indexerStore, err := store.Open(cfg.Database, logging.GlobalLogger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// Fill in the on-disk verification paths when the configuration leaves them to us
	verificationConfig := cfg.Verification
	if verificationConfig.SolcDirectory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "could not resolve a solc directory")
		}
		verificationConfig.SolcDirectory = filepath.Join(home, ".studio-indexer", "solc")
	}
	if verificationConfig.CachePath == "" {
		verificationConfig.CachePath = filepath.Join(verificationConfig.SolcDirectory, "verifications.db")
	}

	contractClassifier := classifier.NewClassifier(pool, logging.GlobalLogger)
	metadataResolver := metadata.NewResolver(cfg.Metadata, indexerStore, contractClassifier, logging.GlobalLogger)
	verifier, err := verification.NewEngine(verificationConfig, indexerStore, pool, logging.GlobalLogger)
	if err != nil {
		pool.Close()
		_ = indexerStore.Close()
		return nil, err
	}

	return &Indexer{
		config:     &cfg,
		logger:     logger,
		pool:       pool,
		store:      indexerStore,
		decoder:    decoder.NewDecoder(logging.GlobalLogger),
		classifier: contractClassifier,
		metadata:   metadataResolver,
		verifier:   verifier,
	}, nil
}

// Start verifies the upstream chain id, launches the background workers, and runs the block ingestion loop until
// the context is cancelled or a systemic error occurs.
func (ix *Indexer) Start(ctx context.Context) error {
	ix.ctx, ix.ctxCancelFunc = context.WithCancel(ctx)

	if err := ix.pool.VerifyChainID(ix.ctx, ix.config.RPC.ChainID); err != nil {
		return err
	}
	ix.logger.Info("Indexer starting", logging.StructuredLogInfo{
		"endpoints": len(ix.config.RPC.URLs), "startBlock": ix.config.Indexer.StartBlock,
		"confirmations": ix.config.Indexer.Confirmations})

	go ix.pool.StartHealthProbes(ix.ctx)
	go ix.metadata.Start(ix.ctx)

	return ix.runIngestor(ix.ctx)
}

// Stop cancels the run context and releases every component.
func (ix *Indexer) Stop() {
	ix.stopOnce.Do(func() {
		if ix.ctxCancelFunc != nil {
			ix.ctxCancelFunc()
		}
		_ = ix.verifier.Close()
		_ = ix.store.Close()
		ix.pool.Close()
		ix.logger.Info("Indexer stopped")
	})
}

// IsRunning reports whether the ingestion loop's context is live.
func (ix *Indexer) IsRunning() bool {
	return ix.ctx != nil && ix.ctx.Err() == nil
}

// Config returns the indexer's configuration.
func (ix *Indexer) Config() *config.ProjectConfig {
	return ix.config
}

// Store returns the persistence layer.
func (ix *Indexer) Store() *store.Store {
	return ix.store
}

// Pool returns the RPC client pool.
func (ix *Indexer) Pool() *rpc.ClientPool {
	return ix.pool
}

// Verifier returns the contract verification engine.
func (ix *Indexer) Verifier() *verification.Engine {
	return ix.verifier
}

// Metadata returns the NFT metadata resolver.
func (ix *Indexer) Metadata() *metadata.Resolver {
	return ix.metadata
}
