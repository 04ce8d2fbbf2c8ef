package events

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/studio-blockchain/studio-indexer/store"
)

// TestEmitterDelivery verifies that emitters deliver to their own subscribers and to global subscribers of the
// same event type, and that emitters of different types stay isolated.
func TestEmitterDelivery(t *testing.T) {
	var indexerEvents IndexerEvents

	var blockCount, reorgCount, globalBlockCount int
	indexerEvents.BlockIndexed.Subscribe(func(event BlockIndexedEvent) error {
		blockCount++
		return nil
	})
	indexerEvents.Reorg.Subscribe(func(event ReorgEvent) error {
		reorgCount++
		return nil
	})
	SubscribeAny(func(event BlockIndexedEvent) error {
		globalBlockCount++
		return nil
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, indexerEvents.BlockIndexed.Publish(BlockIndexedEvent{Block: &store.Block{Number: uint64(i)}}))
	}
	assert.NoError(t, indexerEvents.Reorg.Publish(ReorgEvent{Height: 7}))

	assert.Equal(t, 3, blockCount)
	assert.Equal(t, 1, reorgCount)
	assert.Equal(t, 3, globalBlockCount)
}

// TestEmitterHandlerError verifies that a failing handler aborts delivery and surfaces its error.
func TestEmitterHandlerError(t *testing.T) {
	var emitter EventEmitter[ReorgEvent]

	var laterCalled bool
	emitter.Subscribe(func(event ReorgEvent) error {
		return errors.New("handler failed")
	})
	emitter.Subscribe(func(event ReorgEvent) error {
		laterCalled = true
		return nil
	})

	err := emitter.Publish(ReorgEvent{Height: 1})
	assert.Error(t, err)
	assert.False(t, laterCalled)
}

// TestEmitterUnsubscribe verifies that the closure returned by Subscribe removes only that subscription.
func TestEmitterUnsubscribe(t *testing.T) {
	var emitter EventEmitter[ReorgEvent]

	var first, second int
	unsubscribe := emitter.Subscribe(func(event ReorgEvent) error {
		first++
		return nil
	})
	emitter.Subscribe(func(event ReorgEvent) error {
		second++
		return nil
	})

	assert.NoError(t, emitter.Publish(ReorgEvent{Height: 1}))
	unsubscribe()
	assert.NoError(t, emitter.Publish(ReorgEvent{Height: 2}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
