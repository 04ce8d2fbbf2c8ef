package classifier

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/store"
)

// Function selectors probed during classification.
var (
	selectorSupportsInterface = []byte{0x01, 0xff, 0xc9, 0xa7}
	selectorName              = []byte{0x06, 0xfd, 0xde, 0x03}
	selectorSymbol            = []byte{0x95, 0xd8, 0x9b, 0x41}
	selectorDecimals          = []byte{0x31, 0x3c, 0xe5, 0x67}
	selectorTotalSupply       = []byte{0x18, 0x16, 0x0d, 0xdd}
	selectorTokenURI          = []byte{0xc8, 0x7b, 0x56, 0xdd}
	selectorURI               = []byte{0x0e, 0x89, 0x34, 0x1c}
)

// ERC-165 interface ids probed via supportsInterface.
var (
	interfaceIDERC165  = []byte{0x01, 0xff, 0xc9, 0xa7}
	interfaceIDERC721  = []byte{0x80, 0xac, 0x58, 0xcd}
	interfaceIDERC1155 = []byte{0xd9, 0xb6, 0x7a, 0x26}
)

// ContractCaller is the narrow slice of the RPC surface the classifier needs.
type ContractCaller interface {
	GetCode(ctx context.Context, address common.Address) ([]byte, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Classification is the result of probing one address.
type Classification struct {
	// ContractType is one of the store contract type constants, or store.ContractTypeUnknown.
	ContractType string

	// IsContract reports whether any bytecode is deployed at the address at all.
	IsContract bool

	// Token metadata captured opportunistically during classification. All fields are nil when the corresponding
	// probe reverted or returned garbage.
	Name        *string
	Symbol      *string
	Decimals    *int
	TotalSupply *string
}

// Classifier infers the token standard of deployed contracts by probing them over eth_call. Every probe failure is
// tolerated: classification degrades to UNKNOWN rather than surfacing an error, because arbitrary contracts revert
// on arbitrary calls. Results are memoized per address for the life of the process.
type Classifier struct {
	caller ContractCaller
	logger *logging.Logger

	cacheLock sync.RWMutex
	cache     map[common.Address]*Classification
}

// NewClassifier returns a classifier backed by the given caller.
func NewClassifier(caller ContractCaller, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Classifier{
		caller: caller,
		logger: logger.NewSubLogger("module", "classifier"),
		cache:  make(map[common.Address]*Classification),
	}
}

// Classify probes the address and returns its classification. Identical repeat requests are served from cache.
func (c *Classifier) Classify(ctx context.Context, address common.Address) *Classification {
	c.cacheLock.RLock()
	cached, ok := c.cache[address]
	c.cacheLock.RUnlock()
	if ok {
		return cached
	}

	classification := c.classify(ctx, address)

	c.cacheLock.Lock()
	c.cache[address] = classification
	c.cacheLock.Unlock()
	return classification
}

func (c *Classifier) classify(ctx context.Context, address common.Address) *Classification {
	classification := &Classification{ContractType: store.ContractTypeUnknown}

	code, err := c.caller.GetCode(ctx, address)
	if err != nil {
		c.logger.Debug("Could not fetch contract code", err, logging.StructuredLogInfo{"address": address.Hex()})
		return classification
	}
	if len(code) == 0 {
		return classification
	}
	classification.IsContract = true

	// A contract that answers the ERC-165 gate gets settled through interface ids
	if c.supportsInterface(ctx, address, interfaceIDERC165) {
		if c.supportsInterface(ctx, address, interfaceIDERC721) {
			classification.ContractType = store.ContractTypeERC721
			c.captureTokenMetadata(ctx, address, classification)
			return classification
		}
		if c.supportsInterface(ctx, address, interfaceIDERC1155) {
			classification.ContractType = store.ContractTypeERC1155
			return classification
		}
	}

	// ERC-20 predates ERC-165: the full accessor batch must answer
	c.captureTokenMetadata(ctx, address, classification)
	decimals, decimalsOK := c.callUint(ctx, address, selectorDecimals)
	totalSupply, totalSupplyOK := c.callUint(ctx, address, selectorTotalSupply)
	if classification.Name != nil && classification.Symbol != nil && decimalsOK && totalSupplyOK {
		classification.ContractType = store.ContractTypeERC20
		d := int(decimals.Uint64())
		classification.Decimals = &d
		supply := totalSupply.Dec()
		classification.TotalSupply = &supply
		return classification
	}

	// Pre-ERC-165 NFT contracts: name, symbol and tokenURI(0) answering means ERC-721; a bare uri(0) answer means
	// ERC-1155
	if classification.Name != nil && classification.Symbol != nil && c.probeURI(ctx, address, selectorTokenURI) {
		classification.ContractType = store.ContractTypeERC721
		return classification
	}
	if c.probeURI(ctx, address, selectorURI) {
		classification.ContractType = store.ContractTypeERC1155
		return classification
	}
	return classification
}

// TokenURI resolves the metadata URI for one token, trying tokenURI(id) first and uri(id) second. Returns an empty
// string when neither answers.
func (c *Classifier) TokenURI(ctx context.Context, address common.Address, tokenID *uint256.Int) string {
	arg := tokenID.Bytes32()
	for _, selector := range [][]byte{selectorTokenURI, selectorURI} {
		data := append(append([]byte{}, selector...), arg[:]...)
		result, err := c.caller.CallContract(ctx, address, data)
		if err != nil {
			continue
		}
		if uri, ok := decodeString(result); ok && uri != "" {
			return uri
		}
	}
	return ""
}

// probeURI calls the given URI accessor with token id zero and reports whether it returned a decodable string.
func (c *Classifier) probeURI(ctx context.Context, address common.Address, selector []byte) bool {
	data := append(append([]byte{}, selector...), make([]byte, 32)...)
	result, err := c.caller.CallContract(ctx, address, data)
	if err != nil {
		return false
	}
	_, ok := decodeString(result)
	return ok
}

// supportsInterface probes ERC-165 with the given interface id.
func (c *Classifier) supportsInterface(ctx context.Context, address common.Address, interfaceID []byte) bool {
	// bytes4 arguments are right-padded within their 32-byte word
	data := append(append([]byte{}, selectorSupportsInterface...), interfaceID...)
	data = append(data, make([]byte, 28)...)
	result, err := c.caller.CallContract(ctx, address, data)
	if err != nil || len(result) < 32 {
		return false
	}
	return result[31] == 1
}

// captureTokenMetadata fills in name and symbol from the standard accessors, tolerating reverts.
func (c *Classifier) captureTokenMetadata(ctx context.Context, address common.Address, classification *Classification) {
	if classification.Name == nil {
		if name, ok := c.callString(ctx, address, selectorName); ok {
			classification.Name = &name
		}
	}
	if classification.Symbol == nil {
		if symbol, ok := c.callString(ctx, address, selectorSymbol); ok {
			classification.Symbol = &symbol
		}
	}
}

func (c *Classifier) callString(ctx context.Context, address common.Address, selector []byte) (string, bool) {
	result, err := c.caller.CallContract(ctx, address, selector)
	if err != nil {
		return "", false
	}
	return decodeString(result)
}

func (c *Classifier) callUint(ctx context.Context, address common.Address, selector []byte) (*uint256.Int, bool) {
	result, err := c.caller.CallContract(ctx, address, selector)
	if err != nil || len(result) < 32 {
		return nil, false
	}
	return new(uint256.Int).SetBytes(result[:32]), true
}

// decodeString decodes a single ABI-encoded string return value. Some early ERC-20 deployments return bytes32
// instead, which is handled by treating a 32-byte non-dynamic response as a right-padded fixed string.
func decodeString(data []byte) (string, bool) {
	if len(data) == 32 {
		trimmed := strings.TrimRight(string(data), "\x00")
		if trimmed != "" && utf8.ValidString(trimmed) {
			return trimmed, true
		}
		return "", false
	}
	if len(data) < 64 {
		return "", false
	}

	offset := new(uint256.Int).SetBytes(data[:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(data)) {
		return "", false
	}
	start := offset.Uint64()
	length := new(uint256.Int).SetBytes(data[start : start+32])
	if !length.IsUint64() || start+32+length.Uint64() > uint64(len(data)) {
		return "", false
	}
	value := string(data[start+32 : start+32+length.Uint64()])
	if !utf8.ValidString(value) {
		return "", false
	}
	return value, true
}
