package indexer

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/chain/rpc"
	"github.com/studio-blockchain/studio-indexer/classifier"
	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/decoder"
	"github.com/studio-blockchain/studio-indexer/events"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/metadata"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// chainSource is the slice of the RPC surface the ingestor reads from.
type chainSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*rpc.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
}

// ingestStore is the slice of the persistence layer the ingestor writes through.
type ingestStore interface {
	GetCursor(ctx context.Context) (*store.Cursor, error)
	IngestBlock(ctx context.Context, bundle *store.BlockBundle) error
	Reorg(ctx context.Context, fromHeight uint64) error
	SetFinalized(ctx context.Context, height int64) error
}

// contractClassifier is the slice of the classifier the ingestor consults.
type contractClassifier interface {
	Classify(ctx context.Context, address common.Address) *classifier.Classification
}

// metadataQueue receives NFT transfers for asynchronous metadata resolution.
type metadataQueue interface {
	Enqueue(request metadata.Request)
}

// ingestor drives block ingestion: it trails the chain head by the confirmation depth, fetches up to a window of
// blocks concurrently, and persists them strictly in ascending order. A parent hash mismatch rewinds through the
// store and the loop re-ingests the new branch.
type ingestor struct {
	cfg        config.IndexerConfig
	source     chainSource
	store      ingestStore
	decoder    *decoder.Decoder
	classifier contractClassifier
	metadata   metadataQueue
	events     *events.IndexerEvents
	logger     *logging.Logger
}

// runIngestor runs the ingestion loop until the context is cancelled or a systemic store failure occurs.
func (ix *Indexer) runIngestor(ctx context.Context) error {
	driver := &ingestor{
		cfg:        ix.config.Indexer,
		source:     ix.pool,
		store:      ix.store,
		decoder:    ix.decoder,
		classifier: ix.classifier,
		metadata:   ix.metadata,
		events:     &ix.Events,
		logger:     ix.logger.NewSubLogger("module", "ingestor"),
	}
	return driver.run(ctx)
}

// run is the main loop.
func (i *ingestor) run(ctx context.Context) error {
	pollInterval := time.Duration(i.cfg.PollIntervalSeconds) * time.Second
	for !utils.CheckContextDone(ctx) {
		cursor, err := i.store.GetCursor(ctx)
		if err != nil {
			return err
		}
		next := uint64(cursor.LatestProcessed + 1)
		if next < i.cfg.StartBlock {
			next = i.cfg.StartBlock
		}

		head, err := i.source.BlockNumber(ctx)
		if err != nil {
			i.logger.Warn("Could not read chain head", err)
			if !utils.ContextSleep(ctx, pollInterval) {
				return nil
			}
			continue
		}
		if head < i.cfg.Confirmations {
			if !utils.ContextSleep(ctx, pollInterval) {
				return nil
			}
			continue
		}
		safe := head - i.cfg.Confirmations

		// Caught up; idle until new blocks mature past the confirmation depth
		if next > safe {
			if !utils.ContextSleep(ctx, pollInterval) {
				return nil
			}
			continue
		}

		upper := next + uint64(i.cfg.BatchWindow) - 1
		if upper > safe {
			upper = safe
		}
		complete, err := i.ingestRange(ctx, next, upper)
		if err != nil {
			return err
		}

		// Finality trails the confirmation depth; only advance past fully ingested ranges, best effort
		if complete {
			if err = i.store.SetFinalized(ctx, int64(upper)); err != nil {
				i.logger.Warn("Could not advance finalized height", err)
			}
		}
	}
	return nil
}

// ingestRange fetches [from, to] concurrently and persists the bundles in ascending order. Fetch errors and reorgs
// abort the range; the main loop re-reads the cursor and retries. The returned flag reports whether every height in
// the range was persisted.
func (i *ingestor) ingestRange(ctx context.Context, from uint64, to uint64) (bool, error) {
	type fetched struct {
		bundle *store.BlockBundle
		err    error
	}
	results := make([]fetched, to-from+1)

	var waitGroup sync.WaitGroup
	for height := from; height <= to; height++ {
		waitGroup.Add(1)
		go func(height uint64) {
			defer waitGroup.Done()
			bundle, err := i.fetchBlock(ctx, height)
			results[height-from] = fetched{bundle: bundle, err: err}
		}(height)
	}
	waitGroup.Wait()

	for height := from; height <= to; height++ {
		if utils.CheckContextDone(ctx) {
			return false, nil
		}
		result := results[height-from]
		if result.err != nil {
			i.logger.Warn("Could not fetch block", result.err, logging.StructuredLogInfo{"height": height})
			return false, nil
		}

		err := i.store.IngestBlock(ctx, result.bundle)
		if errors.Is(err, store.ErrParentHashMismatch) {
			// The mismatch means the stored parent at height-1 belongs to an abandoned branch; that is the first
			// height to purge. Rewinds never reach below the configured start.
			purge := height - 1
			if purge < i.cfg.StartBlock {
				purge = i.cfg.StartBlock
			}
			i.logger.Warn("Reorg detected", logging.StructuredLogInfo{
				"height": height, "purge": purge, "parentHash": result.bundle.Block.ParentHash})
			if publishErr := i.events.Reorg.Publish(events.ReorgEvent{Height: purge}); publishErr != nil {
				i.logger.Error("Reorg event handler failed", publishErr)
			}
			if err = i.store.Reorg(ctx, purge); err != nil {
				return false, err
			}
			return false, nil
		}
		if err != nil {
			return false, err
		}

		i.afterPersist(result.bundle)
	}
	return true, nil
}

// afterPersist publishes the block event and schedules metadata resolution for NFT transfers.
func (i *ingestor) afterPersist(bundle *store.BlockBundle) {
	for _, transfer := range bundle.Transfers {
		if transfer.TokenType == store.TokenTypeERC721 || transfer.TokenType == store.TokenTypeERC1155 {
			if transfer.TokenID != nil {
				i.metadata.Enqueue(metadata.Request{
					TokenAddress: transfer.TokenAddress,
					TokenID:      *transfer.TokenID,
					TokenType:    transfer.TokenType,
				})
			}
		}
	}
	if err := i.events.BlockIndexed.Publish(events.BlockIndexedEvent{
		Block:     &bundle.Block,
		Transfers: bundle.Transfers,
	}); err != nil {
		i.logger.Error("Block event handler failed", err)
	}
	i.logger.Info("Block indexed", logging.StructuredLogInfo{
		"height": bundle.Block.Number, "transactions": len(bundle.Transactions), "transfers": len(bundle.Transfers)})
}

// fetchBlock builds the full persistence bundle for one height: the block with its transactions, every receipt's
// decoded transfers and raw logs, classifications for created contracts and transferred tokens, and best-effort
// balance snapshots for every touched account.
func (i *ingestor) fetchBlock(ctx context.Context, height uint64) (*store.BlockBundle, error) {
	block, err := i.source.BlockByNumber(ctx, height)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, errors.Errorf("block %d is not yet available", height)
	}

	timestamp := time.Unix(int64(block.Timestamp), 0).UTC()
	bundle := &store.BlockBundle{
		Block: store.Block{
			Number:           block.Number.ToInt().Uint64(),
			Hash:             strings.ToLower(block.Hash.Hex()),
			ParentHash:       strings.ToLower(block.ParentHash.Hex()),
			Timestamp:        timestamp,
			Miner:            strings.ToLower(block.Miner.Hex()),
			GasLimit:         uint64(block.GasLimit),
			GasUsed:          uint64(block.GasUsed),
			Difficulty:       bigToDecimal(block.Difficulty.ToInt()),
			ExtraData:        block.ExtraData.String(),
			Nonce:            "0x" + common.Bytes2Hex(block.Nonce[:]),
			TransactionCount: len(block.Transactions),
		},
		Balances: map[string]string{},
	}

	// Receipts are independent; fetch them concurrently within the block
	receipts := make([]*coretypes.Receipt, len(block.Transactions))
	receiptErrors := make([]error, len(block.Transactions))
	var waitGroup sync.WaitGroup
	for index := range block.Transactions {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			receipts[index], receiptErrors[index] = i.source.TransactionReceipt(ctx, block.Transactions[index].Hash)
		}(index)
	}
	waitGroup.Wait()

	touched := map[string]struct{}{}
	for index, wireTransaction := range block.Transactions {
		if receiptErrors[index] != nil {
			return nil, errors.Wrapf(receiptErrors[index], "could not fetch receipt for %s", wireTransaction.Hash.Hex())
		}
		receipt := receipts[index]
		if receipt == nil {
			return nil, errors.Errorf("receipt for %s is not yet available", wireTransaction.Hash.Hex())
		}

		transaction := store.Transaction{
			Hash:             strings.ToLower(wireTransaction.Hash.Hex()),
			BlockNumber:      height,
			TransactionIndex: uint64(wireTransaction.TransactionIndex),
			From:             strings.ToLower(wireTransaction.From.Hex()),
			Value:            bigToDecimal(wireTransaction.Value.ToInt()),
			GasPrice:         bigToDecimal(wireTransaction.GasPrice.ToInt()),
			GasLimit:         uint64(wireTransaction.Gas),
			GasUsed:          receipt.GasUsed,
			Input:            wireTransaction.Input.String(),
			Nonce:            uint64(wireTransaction.Nonce),
			Status:           int16(receipt.Status),
			Timestamp:        timestamp,
		}
		touched[transaction.From] = struct{}{}
		if wireTransaction.To != nil {
			to := strings.ToLower(wireTransaction.To.Hex())
			transaction.To = &to
			touched[to] = struct{}{}
		} else if receipt.ContractAddress != (common.Address{}) {
			created := strings.ToLower(receipt.ContractAddress.Hex())
			transaction.ContractAddress = &created
			touched[created] = struct{}{}
			bundle.Contracts = append(bundle.Contracts, i.classifyCreation(ctx, receipt.ContractAddress, &transaction))
		}

		transfers, eventLogs := i.decoder.DecodeLogs(receipt.Logs, timestamp)
		bundle.Transfers = append(bundle.Transfers, transfers...)
		bundle.EventLogs = append(bundle.EventLogs, eventLogs...)
		bundle.Transactions = append(bundle.Transactions, transaction)
	}

	// Token contracts first seen through a transfer get a discovery row carrying their classification
	known := map[string]struct{}{}
	for _, contract := range bundle.Contracts {
		known[contract.Address] = struct{}{}
	}
	for _, transfer := range bundle.Transfers {
		if _, seen := known[transfer.TokenAddress]; seen {
			continue
		}
		known[transfer.TokenAddress] = struct{}{}
		if address, err := utils.HexStringToAddress(transfer.TokenAddress); err == nil {
			bundle.Contracts = append(bundle.Contracts, i.discoveredToken(ctx, address, height))
		}
	}

	// Mirror native balances of touched accounts; a failed probe just leaves the previous snapshot in place
	for address := range touched {
		parsed, err := utils.HexStringToAddress(address)
		if err != nil {
			continue
		}
		balance, err := i.source.GetBalance(ctx, parsed)
		if err != nil {
			i.logger.Debug("Could not refresh account balance", err, logging.StructuredLogInfo{"address": address})
			continue
		}
		bundle.Balances[address] = balance.String()
	}
	return bundle, nil
}

// classifyCreation builds the contract row for a creation receipt.
func (i *ingestor) classifyCreation(ctx context.Context, address common.Address, transaction *store.Transaction) store.Contract {
	classification := i.classifier.Classify(ctx, address)
	return store.Contract{
		Address:        strings.ToLower(address.Hex()),
		Creator:        transaction.From,
		CreationTxHash: transaction.Hash,
		CreationBlock:  transaction.BlockNumber,
		ContractType:   classification.ContractType,
		Name:           classification.Name,
		Symbol:         classification.Symbol,
		Decimals:       classification.Decimals,
		TotalSupply:    classification.TotalSupply,
	}
}

// discoveredToken builds the contract row for a token first seen through a transfer, where the creation transaction
// predates the indexed range.
func (i *ingestor) discoveredToken(ctx context.Context, address common.Address, height uint64) store.Contract {
	classification := i.classifier.Classify(ctx, address)
	return store.Contract{
		Address:       strings.ToLower(address.Hex()),
		Creator:       "",
		CreationBlock: height,
		ContractType:  classification.ContractType,
		Name:          classification.Name,
		Symbol:        classification.Symbol,
		Decimals:      classification.Decimals,
		TotalSupply:   classification.TotalSupply,
	}
}

// bigToDecimal renders a possibly-nil big integer as a decimal string.
func bigToDecimal(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
