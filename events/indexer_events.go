package events

import (
	"github.com/studio-blockchain/studio-indexer/store"
)

// BlockIndexedEvent is published after a block bundle has been durably persisted. The websocket block feed and the
// metadata resolver both subscribe to it.
type BlockIndexedEvent struct {
	// Block is the persisted block.
	Block *store.Block

	// Transfers are the token transfers decoded from the block, in log order.
	Transfers []store.TokenTransfer
}

// ReorgEvent is published when a parent hash mismatch forces the ingestor to unwind indexed state.
type ReorgEvent struct {
	// Height is the first height purged. The cursor rewinds to Height-1.
	Height uint64
}

// IndexerEvents groups the event emitters exposed by the block ingestor.
type IndexerEvents struct {
	// BlockIndexed fires once per persisted block, after its database transaction commits.
	BlockIndexed EventEmitter[BlockIndexedEvent]

	// Reorg fires before indexed state above the fork point is purged.
	Reorg EventEmitter[ReorgEvent]
}
