package decoder

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// Event signature hashes recognized by the decoder, computed from the canonical signatures at init.
var (
	// TransferEventHash is keccak256("Transfer(address,address,uint256)"), shared by ERC-20 and ERC-721.
	TransferEventHash common.Hash

	// TransferSingleEventHash is keccak256("TransferSingle(address,address,address,uint256,uint256)").
	TransferSingleEventHash common.Hash

	// TransferBatchEventHash is keccak256("TransferBatch(address,address,address,uint256[],uint256[])").
	TransferBatchEventHash common.Hash
)

func init() {
	TransferEventHash = eventSignatureHash("Transfer(address,address,uint256)")
	TransferSingleEventHash = eventSignatureHash("TransferSingle(address,address,address,uint256,uint256)")
	TransferBatchEventHash = eventSignatureHash("TransferBatch(address,address,address,uint256[],uint256[])")
}

// eventSignatureHash computes the keccak256 topic hash for a canonical event signature.
func eventSignatureHash(signature string) common.Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	return common.BytesToHash(hash.Sum(nil))
}

// Decoder turns raw receipt logs into token transfers and audit rows. Decoding is purely syntactic: a log either
// matches a recognized transfer shape or it does not, and malformed matches are skipped with a warning rather than
// failing the block.
type Decoder struct {
	logger *logging.Logger
}

// NewDecoder returns a log decoder.
func NewDecoder(logger *logging.Logger) *Decoder {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Decoder{
		logger: logger.NewSubLogger("module", "decoder"),
	}
}

// DecodeLogs processes a transaction's receipt logs in log order and returns the decoded token transfers alongside
// raw event log rows for every log, recognized or not.
func (d *Decoder) DecodeLogs(logs []*coretypes.Log, timestamp time.Time) ([]store.TokenTransfer, []store.EventLog) {
	transfers := make([]store.TokenTransfer, 0)
	eventLogs := make([]store.EventLog, 0, len(logs))
	for _, log := range logs {
		if log == nil {
			continue
		}
		eventLogs = append(eventLogs, rawEventLog(log, timestamp))
		transfers = append(transfers, d.decodeLog(log, timestamp)...)
	}
	return transfers, eventLogs
}

// decodeLog decodes one log into zero or more transfers.
func (d *Decoder) decodeLog(log *coretypes.Log, timestamp time.Time) []store.TokenTransfer {
	if len(log.Topics) == 0 {
		return nil
	}

	switch log.Topics[0] {
	case TransferEventHash:
		// Topic arity distinguishes the two standards sharing this signature: ERC-20 carries the value in the
		// data segment, ERC-721 indexes the token id as a third topic.
		switch len(log.Topics) {
		case 3:
			return d.decodeERC20Transfer(log, timestamp)
		case 4:
			return d.decodeERC721Transfer(log, timestamp)
		default:
			return nil
		}
	case TransferSingleEventHash:
		return d.decodeERC1155Single(log, timestamp)
	case TransferBatchEventHash:
		return d.decodeERC1155Batch(log, timestamp)
	}
	return nil
}

func (d *Decoder) decodeERC20Transfer(log *coretypes.Log, timestamp time.Time) []store.TokenTransfer {
	if len(log.Data) < 32 {
		d.logger.Warn("Skipping malformed token transfer log", logging.StructuredLogInfo{
			"txHash": log.TxHash.Hex(), "logIndex": log.Index, "reason": "short data segment"})
		return nil
	}
	value := new(uint256.Int).SetBytes(log.Data[:32])
	return []store.TokenTransfer{{
		TransactionHash: strings.ToLower(log.TxHash.Hex()),
		BlockNumber:     log.BlockNumber,
		TokenAddress:    strings.ToLower(log.Address.Hex()),
		From:            strings.ToLower(utils.TopicToAddress(log.Topics[1]).Hex()),
		To:              strings.ToLower(utils.TopicToAddress(log.Topics[2]).Hex()),
		Value:           value.Dec(),
		TokenType:       store.TokenTypeERC20,
		Timestamp:       timestamp,
	}}
}

func (d *Decoder) decodeERC721Transfer(log *coretypes.Log, timestamp time.Time) []store.TokenTransfer {
	tokenID := new(uint256.Int).SetBytes(log.Topics[3].Bytes()).Dec()
	return []store.TokenTransfer{{
		TransactionHash: strings.ToLower(log.TxHash.Hex()),
		BlockNumber:     log.BlockNumber,
		TokenAddress:    strings.ToLower(log.Address.Hex()),
		From:            strings.ToLower(utils.TopicToAddress(log.Topics[1]).Hex()),
		To:              strings.ToLower(utils.TopicToAddress(log.Topics[2]).Hex()),
		Value:           "1",
		TokenType:       store.TokenTypeERC721,
		TokenID:         &tokenID,
		Timestamp:       timestamp,
	}}
}

func (d *Decoder) decodeERC1155Single(log *coretypes.Log, timestamp time.Time) []store.TokenTransfer {
	// topic1 is the operator, which the indexer does not record.
	if len(log.Topics) != 4 || len(log.Data) < 64 {
		d.logger.Warn("Skipping malformed token transfer log", logging.StructuredLogInfo{
			"txHash": log.TxHash.Hex(), "logIndex": log.Index, "reason": "malformed TransferSingle"})
		return nil
	}
	tokenID := new(uint256.Int).SetBytes(log.Data[:32]).Dec()
	value := new(uint256.Int).SetBytes(log.Data[32:64])
	return []store.TokenTransfer{{
		TransactionHash: strings.ToLower(log.TxHash.Hex()),
		BlockNumber:     log.BlockNumber,
		TokenAddress:    strings.ToLower(log.Address.Hex()),
		From:            strings.ToLower(utils.TopicToAddress(log.Topics[2]).Hex()),
		To:              strings.ToLower(utils.TopicToAddress(log.Topics[3]).Hex()),
		Value:           value.Dec(),
		TokenType:       store.TokenTypeERC1155,
		TokenID:         &tokenID,
		Timestamp:       timestamp,
	}}
}

// decodeERC1155Batch expands one TransferBatch log into one transfer per (id, value) pair. The data segment is
// ABI-encoded as two dynamic uint256 arrays; when their lengths disagree the shorter one wins and a warning is
// logged.
func (d *Decoder) decodeERC1155Batch(log *coretypes.Log, timestamp time.Time) []store.TokenTransfer {
	if len(log.Topics) != 4 {
		return nil
	}
	ids, values, ok := decodeBatchArrays(log.Data)
	if !ok {
		d.logger.Warn("Skipping malformed token transfer log", logging.StructuredLogInfo{
			"txHash": log.TxHash.Hex(), "logIndex": log.Index, "reason": "malformed TransferBatch data"})
		return nil
	}
	count := len(ids)
	if len(values) < count {
		count = len(values)
	}
	if len(ids) != len(values) {
		d.logger.Warn("TransferBatch id and value arrays disagree in length", logging.StructuredLogInfo{
			"txHash": log.TxHash.Hex(), "logIndex": log.Index, "ids": len(ids), "values": len(values)})
	}

	from := strings.ToLower(utils.TopicToAddress(log.Topics[2]).Hex())
	to := strings.ToLower(utils.TopicToAddress(log.Topics[3]).Hex())
	transfers := make([]store.TokenTransfer, 0, count)
	for i := 0; i < count; i++ {
		tokenID := ids[i].Dec()
		transfers = append(transfers, store.TokenTransfer{
			TransactionHash: strings.ToLower(log.TxHash.Hex()),
			BlockNumber:     log.BlockNumber,
			TokenAddress:    strings.ToLower(log.Address.Hex()),
			From:            from,
			To:              to,
			Value:           values[i].Dec(),
			TokenType:       store.TokenTypeERC1155,
			TokenID:         &tokenID,
			Timestamp:       timestamp,
		})
	}
	return transfers
}

// decodeBatchArrays reads the two dynamic uint256[] arrays out of a TransferBatch data segment.
func decodeBatchArrays(data []byte) ([]*uint256.Int, []*uint256.Int, bool) {
	if len(data) < 64 {
		return nil, nil, false
	}
	idsOffset, ok := wordToOffset(data[:32], len(data))
	if !ok {
		return nil, nil, false
	}
	valuesOffset, ok := wordToOffset(data[32:64], len(data))
	if !ok {
		return nil, nil, false
	}
	ids, ok := decodeUint256Array(data, idsOffset)
	if !ok {
		return nil, nil, false
	}
	values, ok := decodeUint256Array(data, valuesOffset)
	if !ok {
		return nil, nil, false
	}
	return ids, values, true
}

// decodeUint256Array reads a length-prefixed uint256 array at the given byte offset.
func decodeUint256Array(data []byte, offset int) ([]*uint256.Int, bool) {
	if offset+32 > len(data) {
		return nil, false
	}
	length, ok := wordToOffset(data[offset:offset+32], len(data))
	if !ok {
		return nil, false
	}
	start := offset + 32
	if start+length*32 > len(data) {
		return nil, false
	}
	elements := make([]*uint256.Int, length)
	for i := 0; i < length; i++ {
		elements[i] = new(uint256.Int).SetBytes(data[start+i*32 : start+(i+1)*32])
	}
	return elements, true
}

// wordToOffset interprets a 32-byte ABI word as a small non-negative integer bounded by the data length.
func wordToOffset(word []byte, bound int) (int, bool) {
	value := new(uint256.Int).SetBytes(word)
	if !value.IsUint64() || value.Uint64() > uint64(bound) {
		return 0, false
	}
	return int(value.Uint64()), true
}

// rawEventLog converts one receipt log into its audit row.
func rawEventLog(log *coretypes.Log, timestamp time.Time) store.EventLog {
	row := store.EventLog{
		TransactionHash: strings.ToLower(log.TxHash.Hex()),
		LogIndex:        uint64(log.Index),
		BlockNumber:     log.BlockNumber,
		Address:         strings.ToLower(log.Address.Hex()),
		Data:            "0x" + common.Bytes2Hex(log.Data),
		Timestamp:       timestamp,
	}
	topics := []**string{&row.Topic0, &row.Topic1, &row.Topic2, &row.Topic3}
	for i := 0; i < len(log.Topics) && i < len(topics); i++ {
		topic := strings.ToLower(log.Topics[i].Hex())
		*topics[i] = &topic
	}
	return row
}
