package classifier

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio-blockchain/studio-indexer/store"
)

// stubCaller answers GetCode and CallContract from canned responses keyed by calldata prefix.
type stubCaller struct {
	code      []byte
	responses map[string][]byte
	calls     int
}

func (s *stubCaller) GetCode(_ context.Context, _ common.Address) ([]byte, error) {
	s.calls++
	return s.code, nil
}

func (s *stubCaller) CallContract(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	s.calls++
	for prefix, response := range s.responses {
		if bytes.HasPrefix(data, []byte(prefix)) {
			return response, nil
		}
	}
	return nil, errors.New("execution reverted")
}

// failingCaller fails every request.
type failingCaller struct{}

func (failingCaller) GetCode(_ context.Context, _ common.Address) ([]byte, error) {
	return nil, errors.New("rpc unavailable")
}

func (failingCaller) CallContract(_ context.Context, _ common.Address, _ []byte) ([]byte, error) {
	return nil, errors.New("rpc unavailable")
}

func abiBool(v bool) []byte {
	out := make([]byte, 32)
	if v {
		out[31] = 1
	}
	return out
}

func abiUint(n uint64) []byte {
	return new(uint256.Int).SetUint64(n).PaddedBytes(32)
}

func abiString(s string) []byte {
	out := make([]byte, 0, 96+len(s))
	out = append(out, abiUint(32)...)
	out = append(out, abiUint(uint64(len(s)))...)
	padded := make([]byte, (len(s)+31)/32*32)
	copy(padded, s)
	return append(out, padded...)
}

var testAddress = common.HexToAddress("0xCc00000000000000000000000000000000000001")

func TestClassifyEOA(t *testing.T) {
	classifier := NewClassifier(&stubCaller{code: nil}, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	assert.False(t, classification.IsContract)
	assert.Equal(t, store.ContractTypeUnknown, classification.ContractType)
}

func TestClassifyERC721(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(append(selectorSupportsInterface, interfaceIDERC165...)): abiBool(true),
			string(append(selectorSupportsInterface, interfaceIDERC721...)): abiBool(true),
			string(selectorName):   abiString("Studio Collectibles"),
			string(selectorSymbol): abiString("STUC"),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)

	assert.True(t, classification.IsContract)
	assert.Equal(t, store.ContractTypeERC721, classification.ContractType)
	require.NotNil(t, classification.Name)
	assert.Equal(t, "Studio Collectibles", *classification.Name)
	require.NotNil(t, classification.Symbol)
	assert.Equal(t, "STUC", *classification.Symbol)
}

func TestClassifyERC1155(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(append(selectorSupportsInterface, interfaceIDERC165...)):  abiBool(true),
			string(append(selectorSupportsInterface, interfaceIDERC1155...)): abiBool(true),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	assert.Equal(t, store.ContractTypeERC1155, classification.ContractType)
}

func TestClassifyERC20Fallback(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorName):        abiString("Studio Token"),
			string(selectorSymbol):      abiString("STO"),
			string(selectorDecimals):    abiUint(18),
			string(selectorTotalSupply): abiUint(1000000),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)

	assert.Equal(t, store.ContractTypeERC20, classification.ContractType)
	require.NotNil(t, classification.Decimals)
	assert.Equal(t, 18, *classification.Decimals)
	require.NotNil(t, classification.TotalSupply)
	assert.Equal(t, "1000000", *classification.TotalSupply)
}

func TestClassifyERC721WithoutERC165(t *testing.T) {
	// Pre-ERC-165 NFT deployments revert on supportsInterface but answer name, symbol and tokenURI
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorName):     abiString("Vintage Punks"),
			string(selectorSymbol):   abiString("VPNK"),
			string(selectorTokenURI): abiString("https://example.com/0"),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)

	assert.Equal(t, store.ContractTypeERC721, classification.ContractType)
	require.NotNil(t, classification.Name)
	assert.Equal(t, "Vintage Punks", *classification.Name)
}

func TestClassifyERC1155WithoutERC165(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorURI): abiString("https://example.com/{id}.json"),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	assert.Equal(t, store.ContractTypeERC1155, classification.ContractType)
}

func TestClassifyPartialERC20Surface(t *testing.T) {
	// Missing symbol breaks the accessor batch; the contract stays unclassified
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorName):        abiString("Studio Token"),
			string(selectorDecimals):    abiUint(18),
			string(selectorTotalSupply): abiUint(1000000),
		},
	}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	assert.Equal(t, store.ContractTypeUnknown, classification.ContractType)
}

func TestClassifyPlainContract(t *testing.T) {
	// Deployed code but no recognizable token surface
	caller := &stubCaller{code: []byte{0x60, 0x80}}
	classifier := NewClassifier(caller, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	assert.True(t, classification.IsContract)
	assert.Equal(t, store.ContractTypeUnknown, classification.ContractType)
}

func TestClassifyNeverFails(t *testing.T) {
	classifier := NewClassifier(failingCaller{}, nil)
	classification := classifier.Classify(context.Background(), testAddress)
	require.NotNil(t, classification)
	assert.Equal(t, store.ContractTypeUnknown, classification.ContractType)
}

func TestClassifyMemoized(t *testing.T) {
	caller := &stubCaller{code: nil}
	classifier := NewClassifier(caller, nil)

	first := classifier.Classify(context.Background(), testAddress)
	callsAfterFirst := caller.calls
	second := classifier.Classify(context.Background(), testAddress)

	assert.Same(t, first, second)
	assert.Equal(t, callsAfterFirst, caller.calls)
}

func TestTokenURI(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorTokenURI): abiString("ipfs://QmHash/7.json"),
		},
	}
	classifier := NewClassifier(caller, nil)
	uri := classifier.TokenURI(context.Background(), testAddress, uint256.NewInt(7))
	assert.Equal(t, "ipfs://QmHash/7.json", uri)
}

func TestTokenURIFallsBackToURI(t *testing.T) {
	caller := &stubCaller{
		code: []byte{0x60, 0x80},
		responses: map[string][]byte{
			string(selectorURI): abiString("https://example.com/{id}.json"),
		},
	}
	classifier := NewClassifier(caller, nil)
	uri := classifier.TokenURI(context.Background(), testAddress, uint256.NewInt(7))
	assert.Equal(t, "https://example.com/{id}.json", uri)

	// Neither accessor answering yields the empty string
	classifier = NewClassifier(&stubCaller{code: []byte{0x60}}, nil)
	assert.Equal(t, "", classifier.TokenURI(context.Background(), testAddress, uint256.NewInt(7)))
}

func TestDecodeString(t *testing.T) {
	// bytes32-style fixed string used by some early token deployments
	fixed := make([]byte, 32)
	copy(fixed, "MKR")
	value, ok := decodeString(fixed)
	assert.True(t, ok)
	assert.Equal(t, "MKR", value)

	// Truncated dynamic payloads are rejected
	_, ok = decodeString(abiString("Studio Token")[:40])
	assert.False(t, ok)

	// Garbage offset is rejected
	bad := append(abiUint(9999), abiUint(3)...)
	_, ok = decodeString(bad)
	assert.False(t, ok)
}
