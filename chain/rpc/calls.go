package rpc

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Block is the wire shape of an eth_getBlockByNumber response with full transaction objects.
type Block struct {
	Number       *hexutil.Big     `json:"number"`
	Hash         common.Hash      `json:"hash"`
	ParentHash   common.Hash      `json:"parentHash"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Miner        common.Address   `json:"miner"`
	GasLimit     hexutil.Uint64   `json:"gasLimit"`
	GasUsed      hexutil.Uint64   `json:"gasUsed"`
	Difficulty   *hexutil.Big     `json:"difficulty"`
	ExtraData    hexutil.Bytes    `json:"extraData"`
	Nonce        types.BlockNonce `json:"nonce"`
	Transactions []Transaction    `json:"transactions"`
}

// Transaction is the wire shape of a full transaction object inside a block response.
type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Input            hexutil.Bytes   `json:"input"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
	BlockNumber      *hexutil.Big    `json:"blockNumber"`
}

// BlockNumber returns the chain head height.
func (c *ClientPool) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.Call(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// ChainID returns the chain id reported by eth_chainId.
func (c *ClientPool) ChainID(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.Call(ctx, &result, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// BlockByNumber fetches a block at the given height with full transaction objects. Returns nil without an error when
// the block does not exist.
func (c *ClientPool) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var result *Block
	if err := c.Call(ctx, &result, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, err
	}
	return result, nil
}

// TransactionReceipt fetches the receipt for the given transaction hash. Returns nil without an error when the
// receipt is not yet available.
func (c *ClientPool) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var result *types.Receipt
	if err := c.Call(ctx, &result, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	return result, nil
}

// GetCode returns the deployed bytecode at the given address at the latest height.
func (c *ClientPool) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	var result hexutil.Bytes
	if err := c.Call(ctx, &result, "eth_getCode", address, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalance returns the native balance of the given address at the latest height.
func (c *ClientPool) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var result hexutil.Big
	if err := c.Call(ctx, &result, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

// CallContract performs an eth_call against the given address with the provided calldata at the latest height.
func (c *ClientPool) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	callArgs := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var result hexutil.Bytes
	if err := c.Call(ctx, &result, "eth_call", callArgs, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetLogs forwards an opaque eth_getLogs filter object and returns the RPC-shaped log array.
func (c *ClientPool) GetLogs(ctx context.Context, filter json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.Call(ctx, &result, "eth_getLogs", filter); err != nil {
		return nil, err
	}
	return result, nil
}

// PendingTransactions returns the node's pending transaction list in its RPC shape.
func (c *ClientPool) PendingTransactions(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.Call(ctx, &result, "eth_pendingTransactions"); err != nil {
		return nil, err
	}
	return result, nil
}

// CliqueSigners enumerates the current validator set via clique_getSigners. Callers are expected to fall back to
// block-miner aggregation when the endpoint does not expose the clique namespace.
func (c *ClientPool) CliqueSigners(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := c.Call(ctx, &result, "clique_getSigners", "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyChainID checks the node's chain id against the expected one. A zero expectation disables the check.
func (c *ClientPool) VerifyChainID(ctx context.Context, expected uint64) error {
	if expected == 0 {
		return nil
	}
	actual, err := c.ChainID(ctx)
	if err != nil {
		return err
	}
	if actual != expected {
		return errors.Errorf("rpc endpoint chain id mismatch: expected %d, got %d", expected, actual)
	}
	return nil
}
