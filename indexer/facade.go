package indexer

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/studio-blockchain/studio-indexer/store"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// validatorSampleSpan is how many recent blocks the miner-aggregation fallback scans when the clique namespace is
// unavailable.
const validatorSampleSpan = 1000

// Address classifications returned by AddressType.
const (
	AddressTypeWallet   = "wallet"
	AddressTypeContract = "contract"
	AddressTypeToken    = "token"
)

// ErrUnrecognizedQuery is returned by Search for input that is neither a block height, a 32-byte hash nor a 20-byte
// address.
var ErrUnrecognizedQuery = errors.New("unrecognized search query")

// SearchResult is the outcome of a free-form search. Exactly one of the payload fields is set, named by Type.
type SearchResult struct {
	Type        string             `json:"type"`
	Block       *store.Block       `json:"block,omitempty"`
	Transaction *store.Transaction `json:"transaction,omitempty"`
	Contract    *store.Contract    `json:"contract,omitempty"`
	Account     *store.Account     `json:"account,omitempty"`
}

// Search disambiguates a free-form query: a decimal number is a block height, 32-byte hex is a block hash then a
// transaction hash, 20-byte hex is an address. Returns store.ErrNotFound when nothing matches.
func (ix *Indexer) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrUnrecognizedQuery
	}

	if isDecimal(query) {
		number, ok := new(big.Int).SetString(query, 10)
		if !ok || !number.IsUint64() {
			return nil, store.ErrNotFound
		}
		block, err := ix.store.GetBlockByNumber(ctx, number.Uint64())
		if err != nil {
			return nil, err
		}
		return &SearchResult{Type: "block", Block: block}, nil
	}

	normalized := utils.NormalizeAddress(query)
	hexBody := strings.TrimPrefix(normalized, "0x")
	if !utils.IsHexString(hexBody) {
		return nil, errors.WithMessagef(ErrUnrecognizedQuery, "'%s'", query)
	}

	switch len(hexBody) {
	case 64:
		if block, err := ix.store.GetBlockByHash(ctx, normalized); err == nil {
			return &SearchResult{Type: "block", Block: block}, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		transaction, err := ix.store.GetTransactionByHash(ctx, normalized)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Type: "transaction", Transaction: transaction}, nil
	case 40:
		if contract, err := ix.store.GetContract(ctx, normalized); err == nil {
			return &SearchResult{Type: "contract", Contract: contract}, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		account, err := ix.store.GetAccount(ctx, normalized)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Type: "account", Account: account}, nil
	default:
		return nil, errors.WithMessagef(ErrUnrecognizedQuery, "'%s'", query)
	}
}

// GetTPS returns the transactions-per-second statistic over the configured trailing window.
func (ix *Indexer) GetTPS(ctx context.Context) (decimal.Decimal, error) {
	window := time.Duration(ix.config.Stats.TPSWindowSeconds) * time.Second
	return ix.store.TPS(ctx, window)
}

// GetValidators returns the current validator set: the clique signer list when the upstream node exposes it, and the
// distinct miners of recent blocks otherwise.
func (ix *Indexer) GetValidators(ctx context.Context) ([]string, error) {
	signers, err := ix.pool.CliqueSigners(ctx)
	if err == nil {
		validators := make([]string, 0, len(signers))
		for _, signer := range signers {
			validators = append(validators, strings.ToLower(signer.Hex()))
		}
		return validators, nil
	}
	ix.logger.Debug("clique_getSigners unavailable, falling back to block miners", err)
	return ix.store.DistinctMiners(ctx, validatorSampleSpan)
}

// GetValidatorsCount returns the size of the current validator set.
func (ix *Indexer) GetValidatorsCount(ctx context.Context) (int, error) {
	validators, err := ix.GetValidators(ctx)
	if err != nil {
		return 0, err
	}
	return len(validators), nil
}

// GetValidatorPayout computes the accumulated block reward of one validator: the exact count of blocks it mined
// multiplied by the configured per-block reward. Returned in wei as a decimal string.
func (ix *Indexer) GetValidatorPayout(ctx context.Context, validator string) (string, int64, error) {
	blockCount, err := ix.store.CountBlocksByMiner(ctx, utils.NormalizeAddress(validator))
	if err != nil {
		return "", 0, err
	}
	reward := decimal.NewFromBigInt(ix.config.Stats.BlockReward(), 0)
	payout := decimal.NewFromInt(blockCount).Mul(reward)
	return payout.String(), blockCount, nil
}

// AddressType classifies an address as wallet, contract or token. Addresses with an indexed contract row classify
// from the stored type; unknown addresses fall back to a live bytecode probe.
func (ix *Indexer) AddressType(ctx context.Context, address string) (string, error) {
	normalized := utils.NormalizeAddress(address)
	parsed, err := utils.HexStringToAddress(normalized)
	if err != nil {
		return "", err
	}

	contract, err := ix.store.GetContract(ctx, normalized)
	if err == nil {
		switch contract.ContractType {
		case store.ContractTypeERC20, store.ContractTypeERC721, store.ContractTypeERC1155:
			return AddressTypeToken, nil
		default:
			return AddressTypeContract, nil
		}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	code, err := ix.pool.GetCode(ctx, parsed)
	if err != nil {
		return "", err
	}
	if len(code) > 0 {
		return AddressTypeContract, nil
	}
	return AddressTypeWallet, nil
}

// isDecimal reports whether the string is entirely decimal digits.
func isDecimal(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
