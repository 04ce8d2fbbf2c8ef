package decoder

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio-blockchain/studio-indexer/store"
)

var (
	testTokenAddress = common.HexToAddress("0xCc00000000000000000000000000000000000001")
	testFromAddress  = common.HexToAddress("0xAa00000000000000000000000000000000000001")
	testToAddress    = common.HexToAddress("0xBb00000000000000000000000000000000000002")
	testTimestamp    = time.Unix(1700000000, 0).UTC()
)

// addressTopic packs an address into a 32-byte topic the way indexed address parameters are encoded.
func addressTopic(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}

// abiWord encodes a small integer as a 32-byte ABI word.
func abiWord(n uint64) []byte {
	var h common.Hash
	b := h.Bytes()
	for i := 0; n > 0; i++ {
		b[31-i] = byte(n)
		n >>= 8
	}
	return b
}

// encodeBatchData builds the ABI data segment of a TransferBatch log from two uint64 arrays.
func encodeBatchData(ids []uint64, values []uint64) []byte {
	idsOffset := uint64(64)
	valuesOffset := idsOffset + 32 + uint64(len(ids))*32
	data := append(abiWord(idsOffset), abiWord(valuesOffset)...)
	data = append(data, abiWord(uint64(len(ids)))...)
	for _, id := range ids {
		data = append(data, abiWord(id)...)
	}
	data = append(data, abiWord(uint64(len(values)))...)
	for _, value := range values {
		data = append(data, abiWord(value)...)
	}
	return data
}

func TestEventSignatureHashes(t *testing.T) {
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferEventHash.Hex())
	assert.Equal(t, "0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62", TransferSingleEventHash.Hex())
	assert.Equal(t, "0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb", TransferBatchEventHash.Hex())
}

func TestDecodeERC20Transfer(t *testing.T) {
	decoder := NewDecoder(nil)
	log := &coretypes.Log{
		Address:     testTokenAddress,
		Topics:      []common.Hash{TransferEventHash, addressTopic(testFromAddress), addressTopic(testToAddress)},
		Data:        abiWord(1500),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x01"),
		Index:       0,
	}

	transfers, eventLogs := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	require.Len(t, transfers, 1)
	require.Len(t, eventLogs, 1)

	transfer := transfers[0]
	assert.Equal(t, store.TokenTypeERC20, transfer.TokenType)
	assert.Equal(t, "1500", transfer.Value)
	assert.Equal(t, "0xaa00000000000000000000000000000000000001", transfer.From)
	assert.Equal(t, "0xbb00000000000000000000000000000000000002", transfer.To)
	assert.Equal(t, "0xcc00000000000000000000000000000000000001", transfer.TokenAddress)
	assert.Nil(t, transfer.TokenID)
	assert.Equal(t, uint64(42), transfer.BlockNumber)
}

func TestDecodeERC721Transfer(t *testing.T) {
	decoder := NewDecoder(nil)
	log := &coretypes.Log{
		Address: testTokenAddress,
		Topics: []common.Hash{
			TransferEventHash,
			addressTopic(testFromAddress),
			addressTopic(testToAddress),
			common.BytesToHash(abiWord(7)),
		},
		Data:        nil,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x02"),
	}

	transfers, _ := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	require.Len(t, transfers, 1)
	assert.Equal(t, store.TokenTypeERC721, transfers[0].TokenType)
	assert.Equal(t, "1", transfers[0].Value)
	require.NotNil(t, transfers[0].TokenID)
	assert.Equal(t, "7", *transfers[0].TokenID)
}

func TestDecodeERC1155Single(t *testing.T) {
	decoder := NewDecoder(nil)
	operator := common.HexToAddress("0xdd00000000000000000000000000000000000003")
	log := &coretypes.Log{
		Address: testTokenAddress,
		Topics: []common.Hash{
			TransferSingleEventHash,
			addressTopic(operator),
			addressTopic(testFromAddress),
			addressTopic(testToAddress),
		},
		Data:        append(abiWord(9), abiWord(25)...),
		BlockNumber: 43,
		TxHash:      common.HexToHash("0x03"),
	}

	transfers, _ := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	require.Len(t, transfers, 1)
	assert.Equal(t, store.TokenTypeERC1155, transfers[0].TokenType)
	assert.Equal(t, "25", transfers[0].Value)
	require.NotNil(t, transfers[0].TokenID)
	assert.Equal(t, "9", *transfers[0].TokenID)
	assert.Equal(t, "0xaa00000000000000000000000000000000000001", transfers[0].From)
	assert.Equal(t, "0xbb00000000000000000000000000000000000002", transfers[0].To)
}

func TestDecodeERC1155Batch(t *testing.T) {
	decoder := NewDecoder(nil)
	operator := common.HexToAddress("0xdd00000000000000000000000000000000000003")
	log := &coretypes.Log{
		Address: testTokenAddress,
		Topics: []common.Hash{
			TransferBatchEventHash,
			addressTopic(operator),
			addressTopic(testFromAddress),
			addressTopic(testToAddress),
		},
		Data:        encodeBatchData([]uint64{1, 2, 3}, []uint64{10, 20, 30}),
		BlockNumber: 44,
		TxHash:      common.HexToHash("0x04"),
	}

	transfers, _ := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	require.Len(t, transfers, 3)
	for i, expected := range []struct{ id, value string }{{"1", "10"}, {"2", "20"}, {"3", "30"}} {
		assert.Equal(t, store.TokenTypeERC1155, transfers[i].TokenType)
		require.NotNil(t, transfers[i].TokenID)
		assert.Equal(t, expected.id, *transfers[i].TokenID)
		assert.Equal(t, expected.value, transfers[i].Value)
	}
}

func TestDecodeERC1155BatchLengthMismatch(t *testing.T) {
	decoder := NewDecoder(nil)
	log := &coretypes.Log{
		Address: testTokenAddress,
		Topics: []common.Hash{
			TransferBatchEventHash,
			addressTopic(testFromAddress),
			addressTopic(testFromAddress),
			addressTopic(testToAddress),
		},
		Data:   encodeBatchData([]uint64{1, 2, 3}, []uint64{10, 20}),
		TxHash: common.HexToHash("0x05"),
	}

	// The shorter array bounds the expansion
	transfers, _ := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	assert.Len(t, transfers, 2)
}

func TestDecodeMalformedLogsSkipped(t *testing.T) {
	decoder := NewDecoder(nil)
	logs := []*coretypes.Log{
		// ERC-20 shape with a truncated data segment
		{
			Address: testTokenAddress,
			Topics:  []common.Hash{TransferEventHash, addressTopic(testFromAddress), addressTopic(testToAddress)},
			Data:    []byte{0x01},
			TxHash:  common.HexToHash("0x06"),
		},
		// TransferBatch with garbage offsets
		{
			Address: testTokenAddress,
			Topics: []common.Hash{
				TransferBatchEventHash,
				addressTopic(testFromAddress),
				addressTopic(testFromAddress),
				addressTopic(testToAddress),
			},
			Data:   append(abiWord(9999), abiWord(9999)...),
			TxHash: common.HexToHash("0x07"),
		},
		// Transfer with an unexpected topic arity
		{
			Address: testTokenAddress,
			Topics:  []common.Hash{TransferEventHash, addressTopic(testFromAddress)},
			TxHash:  common.HexToHash("0x08"),
		},
	}

	transfers, eventLogs := decoder.DecodeLogs(logs, testTimestamp)
	assert.Empty(t, transfers)
	// Malformed logs are still recorded as raw audit rows
	assert.Len(t, eventLogs, 3)
}

func TestRawEventLogRow(t *testing.T) {
	decoder := NewDecoder(nil)
	unknownTopic := common.HexToHash("0xabcdef")
	log := &coretypes.Log{
		Address:     testTokenAddress,
		Topics:      []common.Hash{unknownTopic, addressTopic(testFromAddress)},
		Data:        []byte{0xde, 0xad},
		BlockNumber: 45,
		TxHash:      common.HexToHash("0x09"),
		Index:       3,
	}

	transfers, eventLogs := decoder.DecodeLogs([]*coretypes.Log{log}, testTimestamp)
	assert.Empty(t, transfers)
	require.Len(t, eventLogs, 1)

	row := eventLogs[0]
	assert.Equal(t, uint64(3), row.LogIndex)
	assert.Equal(t, uint64(45), row.BlockNumber)
	assert.Equal(t, "0xdead", row.Data)
	require.NotNil(t, row.Topic0)
	assert.Equal(t, unknownTopic.Hex(), *row.Topic0)
	require.NotNil(t, row.Topic1)
	assert.Nil(t, row.Topic2)
	assert.Nil(t, row.Topic3)
	assert.Equal(t, testTimestamp, row.Timestamp)
}
