package indexer

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio-blockchain/studio-indexer/chain/rpc"
	"github.com/studio-blockchain/studio-indexer/classifier"
	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/decoder"
	"github.com/studio-blockchain/studio-indexer/events"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/metadata"
	"github.com/studio-blockchain/studio-indexer/store"
)

// stubChain serves a canned chain.
type stubChain struct {
	head     uint64
	blocks   map[uint64]*rpc.Block
	receipts map[common.Hash]*coretypes.Receipt
}

func (s *stubChain) BlockNumber(_ context.Context) (uint64, error) {
	return s.head, nil
}

func (s *stubChain) BlockByNumber(_ context.Context, number uint64) (*rpc.Block, error) {
	return s.blocks[number], nil
}

func (s *stubChain) TransactionReceipt(_ context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	return s.receipts[txHash], nil
}

func (s *stubChain) GetBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(1000), nil
}

// stubIngestStore mirrors the real store's chain linkage rules in memory: it remembers the hash persisted at every
// height, rejects a block whose parent hash differs from the stored one, and purges heights on reorg.
type stubIngestStore struct {
	lock        sync.Mutex
	cursor      int64
	finalized   int64
	hashes      map[uint64]string
	persisted   []uint64
	reorgedFrom []uint64
}

func newStubIngestStore() *stubIngestStore {
	return &stubIngestStore{cursor: -1, hashes: map[uint64]string{}}
}

func (s *stubIngestStore) GetCursor(_ context.Context) (*store.Cursor, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return &store.Cursor{LatestProcessed: s.cursor, LatestFinalized: s.finalized}, nil
}

func (s *stubIngestStore) IngestBlock(_ context.Context, bundle *store.BlockBundle) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	number := bundle.Block.Number
	if parent, ok := s.hashes[number-1]; ok && parent != bundle.Block.ParentHash {
		return store.ErrParentHashMismatch
	}
	s.hashes[number] = bundle.Block.Hash
	s.persisted = append(s.persisted, number)
	s.cursor = int64(number)
	return nil
}

func (s *stubIngestStore) Reorg(_ context.Context, fromHeight uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for height := range s.hashes {
		if height >= fromHeight {
			delete(s.hashes, height)
		}
	}
	s.reorgedFrom = append(s.reorgedFrom, fromHeight)
	s.cursor = int64(fromHeight) - 1
	return nil
}

func (s *stubIngestStore) SetFinalized(_ context.Context, height int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finalized = height
	return nil
}

// stubContractClassifier answers every probe with a fixed classification.
type stubContractClassifier struct {
	classification classifier.Classification
}

func (s *stubContractClassifier) Classify(_ context.Context, _ common.Address) *classifier.Classification {
	result := s.classification
	return &result
}

// stubMetadataQueue records enqueued requests.
type stubMetadataQueue struct {
	lock     sync.Mutex
	requests []metadata.Request
}

func (s *stubMetadataQueue) Enqueue(request metadata.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.requests = append(s.requests, request)
}

func blockHash(number uint64) common.Hash {
	return common.BytesToHash(big.NewInt(int64(number + 0x1000)).Bytes())
}

func altBlockHash(number uint64) common.Hash {
	return common.BytesToHash(big.NewInt(int64(number + 0xa000)).Bytes())
}

func txHash(number uint64, index int) common.Hash {
	return common.BytesToHash(big.NewInt(int64(number*1000+uint64(index)+1)).Bytes())
}

// buildChain produces a linked chain of empty blocks [1, upTo], each with txCount transactions and successful
// receipts.
func buildChain(upTo uint64, txCount int) *stubChain {
	chain := &stubChain{
		head:     upTo,
		blocks:   map[uint64]*rpc.Block{},
		receipts: map[common.Hash]*coretypes.Receipt{},
	}
	from := common.HexToAddress("0xaa00000000000000000000000000000000000001")
	to := common.HexToAddress("0xbb00000000000000000000000000000000000002")
	for number := uint64(1); number <= upTo; number++ {
		block := &rpc.Block{
			Number:     (*hexutil.Big)(new(big.Int).SetUint64(number)),
			Hash:       blockHash(number),
			ParentHash: blockHash(number - 1),
			Timestamp:  hexutil.Uint64(1700000000 + number),
			Miner:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
			GasLimit:   8000000,
			GasUsed:    21000,
			Difficulty: (*hexutil.Big)(big.NewInt(2)),
		}
		for index := 0; index < txCount; index++ {
			hash := txHash(number, index)
			toCopy := to
			block.Transactions = append(block.Transactions, rpc.Transaction{
				Hash:             hash,
				From:             from,
				To:               &toCopy,
				Value:            (*hexutil.Big)(big.NewInt(1)),
				GasPrice:         (*hexutil.Big)(big.NewInt(1)),
				Gas:              21000,
				TransactionIndex: hexutil.Uint64(index),
				BlockNumber:      (*hexutil.Big)(new(big.Int).SetUint64(number)),
			})
			chain.receipts[hash] = &coretypes.Receipt{Status: 1, GasUsed: 21000, TxHash: hash}
		}
		chain.blocks[number] = block
	}
	return chain
}

// forkChain replaces heights [from, upTo] with a competing branch rooted at from-1, the way a reorg past the
// confirmation depth presents itself to the ingestor.
func forkChain(chain *stubChain, from uint64, upTo uint64) {
	for number := from; number <= upTo; number++ {
		parent := altBlockHash(number - 1)
		if number == from {
			parent = blockHash(number - 1)
		}
		chain.blocks[number] = &rpc.Block{
			Number:     (*hexutil.Big)(new(big.Int).SetUint64(number)),
			Hash:       altBlockHash(number),
			ParentHash: parent,
			Timestamp:  hexutil.Uint64(1700001000 + number),
			Miner:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
			GasLimit:   8000000,
			Difficulty: (*hexutil.Big)(big.NewInt(2)),
		}
	}
	chain.head = upTo
}

func testIngestor(chain *stubChain, ingestStore *stubIngestStore) (*ingestor, *stubMetadataQueue, *events.IndexerEvents) {
	queue := &stubMetadataQueue{}
	indexerEvents := &events.IndexerEvents{}
	driver := &ingestor{
		cfg:        config.IndexerConfig{StartBlock: 1, Confirmations: 2, BatchWindow: 4, PollIntervalSeconds: 1},
		source:     chain,
		store:      ingestStore,
		decoder:    decoder.NewDecoder(logging.GlobalLogger),
		classifier: &stubContractClassifier{classification: classifier.Classification{ContractType: store.ContractTypeUnknown, IsContract: true}},
		metadata:   queue,
		events:     indexerEvents,
		logger:     logging.GlobalLogger,
	}
	return driver, queue, indexerEvents
}

func TestIngestRangePersistsAscending(t *testing.T) {
	chain := buildChain(5, 1)
	ingestStore := newStubIngestStore()
	driver, _, indexerEvents := testIngestor(chain, ingestStore)

	var published []uint64
	indexerEvents.BlockIndexed.Subscribe(func(event events.BlockIndexedEvent) error {
		published = append(published, event.Block.Number)
		return nil
	})

	complete, err := driver.ingestRange(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ingestStore.persisted)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, published)
	assert.EqualValues(t, 5, ingestStore.cursor)
}

func TestIngestRangeReorgRewindsAndConverges(t *testing.T) {
	chain := buildChain(5, 0)
	ingestStore := newStubIngestStore()
	driver, _, indexerEvents := testIngestor(chain, ingestStore)

	var reorgHeights []uint64
	indexerEvents.Reorg.Subscribe(func(event events.ReorgEvent) error {
		reorgHeights = append(reorgHeights, event.Height)
		return nil
	})

	complete, err := driver.ingestRange(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, complete)

	// The chain abandons heights 3..5 for a competing branch extending to 6
	forkChain(chain, 3, 6)

	// Drive passes the way run does. Each mismatch at H must purge H-1, so the rewind walks back one height per
	// pass until the shared ancestor at 2, then the new branch ingests cleanly.
	for pass := 0; pass < 10; pass++ {
		cursor, cursorErr := ingestStore.GetCursor(context.Background())
		require.NoError(t, cursorErr)
		next := uint64(cursor.LatestProcessed + 1)
		if next > 6 {
			break
		}
		_, err = driver.ingestRange(context.Background(), next, 6)
		require.NoError(t, err)
	}

	assert.Equal(t, []uint64{5, 4, 3}, ingestStore.reorgedFrom)
	assert.Equal(t, []uint64{5, 4, 3}, reorgHeights)
	assert.EqualValues(t, 6, ingestStore.cursor)

	// The stored branch above the fork point is the new one
	assert.Equal(t, strings.ToLower(blockHash(2).Hex()), ingestStore.hashes[2])
	for height := uint64(3); height <= 6; height++ {
		assert.Equal(t, strings.ToLower(altBlockHash(height).Hex()), ingestStore.hashes[height])
	}
}

func TestRunTrailsConfirmations(t *testing.T) {
	// Head 10 with 2 confirmations: heights 1..8 are safe
	chain := buildChain(10, 0)
	ingestStore := newStubIngestStore()
	driver, _, _ := testIngestor(chain, ingestStore)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Stop once the driver goes idle at the safe height
		for {
			ingestStore.lock.Lock()
			done := ingestStore.cursor >= 8
			ingestStore.lock.Unlock()
			if done {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, driver.run(ctx))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, ingestStore.persisted)
	assert.EqualValues(t, 8, ingestStore.finalized)
}

func TestFetchBlockBundle(t *testing.T) {
	chain := buildChain(1, 1)

	// Second transaction creates a token contract whose receipt carries an ERC-721 transfer log
	created := common.HexToAddress("0xcc00000000000000000000000000000000000001")
	creationHash := txHash(1, 9)
	chain.blocks[1].Transactions = append(chain.blocks[1].Transactions, rpc.Transaction{
		Hash:             creationHash,
		From:             common.HexToAddress("0xaa00000000000000000000000000000000000001"),
		To:               nil,
		Value:            (*hexutil.Big)(big.NewInt(0)),
		GasPrice:         (*hexutil.Big)(big.NewInt(1)),
		TransactionIndex: hexutil.Uint64(1),
		BlockNumber:      (*hexutil.Big)(big.NewInt(1)),
	})
	tokenID := common.BigToHash(big.NewInt(7))
	chain.receipts[creationHash] = &coretypes.Receipt{
		Status:          1,
		GasUsed:         500000,
		TxHash:          creationHash,
		ContractAddress: created,
		Logs: []*coretypes.Log{{
			Address: created,
			Topics: []common.Hash{
				decoder.TransferEventHash,
				common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000000").Bytes()),
				common.BytesToHash(common.HexToAddress("0xbb00000000000000000000000000000000000002").Bytes()),
				tokenID,
			},
			BlockNumber: 1,
			TxHash:      creationHash,
		}},
	}
	chain.blocks[1].Transactions[1].BlockNumber = (*hexutil.Big)(big.NewInt(1))

	ingestStore := newStubIngestStore()
	driver, queue, _ := testIngestor(chain, ingestStore)
	driver.classifier = &stubContractClassifier{classification: classifier.Classification{
		ContractType: store.ContractTypeERC721, IsContract: true}}

	bundle, err := driver.fetchBlock(context.Background(), 1)
	require.NoError(t, err)

	assert.EqualValues(t, 1, bundle.Block.Number)
	require.Len(t, bundle.Transactions, 2)

	// Creation transaction has a nil recipient and carries the created address
	creation := bundle.Transactions[1]
	assert.Nil(t, creation.To)
	require.NotNil(t, creation.ContractAddress)
	assert.Equal(t, "0xcc00000000000000000000000000000000000001", *creation.ContractAddress)

	// The created contract is classified once, not duplicated by the transfer discovery pass
	require.Len(t, bundle.Contracts, 1)
	assert.Equal(t, store.ContractTypeERC721, bundle.Contracts[0].ContractType)
	assert.Equal(t, creation.From, bundle.Contracts[0].Creator)

	require.Len(t, bundle.Transfers, 1)
	assert.Equal(t, store.TokenTypeERC721, bundle.Transfers[0].TokenType)

	// Touched accounts carry mirrored balances
	assert.Equal(t, "1000", bundle.Balances[creation.From])

	// Persisting schedules metadata resolution for the NFT
	driver.afterPersist(bundle)
	require.Len(t, queue.requests, 1)
	assert.Equal(t, "7", queue.requests[0].TokenID)
}
