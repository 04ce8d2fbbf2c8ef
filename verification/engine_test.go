package verification

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/store"
)

// stubContractStore serves one unverified contract.
type stubContractStore struct {
	contract *store.Contract
	verified map[string]*store.Verification
}

func (s *stubContractStore) GetContract(_ context.Context, address string) (*store.Contract, error) {
	if s.contract == nil || s.contract.Address != address {
		return nil, store.ErrNotFound
	}
	return s.contract, nil
}

func (s *stubContractStore) SetVerified(_ context.Context, address string, verification *store.Verification) error {
	if s.verified == nil {
		s.verified = map[string]*store.Verification{}
	}
	s.verified[address] = verification
	return nil
}

// stubCodeReader serves fixed bytecode.
type stubCodeReader struct {
	code []byte
}

func (s *stubCodeReader) GetCode(_ context.Context, _ common.Address) ([]byte, error) {
	return s.code, nil
}

func testEngine(t *testing.T) *Engine {
	cfg := config.VerificationConfig{
		MaxSourceBytes: 1024,
		WorkerPool:     2,
		SolcDirectory:  t.TempDir(),
		CachePath:      filepath.Join(t.TempDir(), "verifications.db"),
		ReleaseListURL: "http://127.0.0.1:1/list.json",
	}
	engine, err := NewEngine(cfg, &stubContractStore{}, &stubCodeReader{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestValidate(t *testing.T) {
	engine := testEngine(t)

	valid := testRequest()
	assert.Nil(t, engine.validate(valid))

	noSources := testRequest()
	noSources.Sources = nil
	diagnostic := engine.validate(noSources)
	require.NotNil(t, diagnostic)
	assert.Equal(t, ErrorInvalidArguments, diagnostic.Code)

	oversize := testRequest()
	oversize.Sources = map[string]string{"Big.sol": strings.Repeat("x", 2048)}
	require.NotNil(t, engine.validate(oversize))

	badArguments := testRequest()
	badArguments.ConstructorArguments = "0xzz"
	require.NotNil(t, engine.validate(badArguments))

	oddLength := testRequest()
	oddLength.ConstructorArguments = "0x123"
	require.NotNil(t, engine.validate(oddLength))

	badAddress := testRequest()
	badAddress.Address = "0x1234"
	require.NotNil(t, engine.validate(badAddress))
}

func TestVerifyBusy(t *testing.T) {
	engine := testEngine(t)

	// Saturate the admission semaphore
	engine.slots <- struct{}{}
	engine.slots <- struct{}{}

	_, err := engine.Verify(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestVerifyUnknownContract(t *testing.T) {
	engine := testEngine(t)
	_, err := engine.Verify(context.Background(), testRequest())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyInvalidArgumentsIsAResult(t *testing.T) {
	engine := testEngine(t)

	request := testRequest()
	request.Sources = nil
	result, err := engine.Verify(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, string(ErrorInvalidArguments))
}

func TestFindContract(t *testing.T) {
	output := &solcOutput{
		Contracts: map[string]map[string]solcArtifact{
			"Token.sol": {
				"Token": func() solcArtifact {
					var artifact solcArtifact
					artifact.EVM.DeployedBytecode.Object = "6080"
					return artifact
				}(),
				"IToken": {},
			},
		},
	}

	artifact, mainFile, diagnostic := findContract(output, "Token")
	require.Nil(t, diagnostic)
	assert.Equal(t, "Token.sol", mainFile)
	assert.Equal(t, "6080", artifact.EVM.DeployedBytecode.Object)

	_, _, diagnostic = findContract(output, "Missing")
	require.NotNil(t, diagnostic)
	assert.Equal(t, ErrorContractNotFound, diagnostic.Code)

	// An empty name is ambiguous when several contracts compiled
	_, _, diagnostic = findContract(output, "")
	require.NotNil(t, diagnostic)

	// An interface with no bytecode cannot be verified
	_, _, diagnostic = findContract(output, "IToken")
	require.NotNil(t, diagnostic)
}

func TestMainFileFor(t *testing.T) {
	request := &Request{
		ContractName: "Token",
		Sources: map[string]string{
			"a/Base.sol":  "contract Base {}",
			"b/Token.sol": "abstract contract Helper {}\ncontract Token is Base {}",
		},
	}
	assert.Equal(t, "b/Token.sol", mainFileFor(request))

	// Without a declaration match the first sorted path wins
	request.ContractName = "Elsewhere"
	assert.Equal(t, "a/Base.sol", mainFileFor(request))
}

func TestBuildStandardJSON(t *testing.T) {
	request := testRequest()
	request.OptimizationUsed = true
	request.Libraries = map[string]string{
		"Lib.sol:SafeMath": "0x1111111111111111111111111111111111111111",
	}

	input := buildStandardJSON(request.Sources, request, "paris")
	assert.Equal(t, "Solidity", input["language"])

	settings := input["settings"].(map[string]any)
	assert.Equal(t, "paris", settings["evmVersion"])
	optimizer := settings["optimizer"].(map[string]any)
	assert.Equal(t, true, optimizer["enabled"])
	assert.Equal(t, 200, optimizer["runs"])

	libraries := settings["libraries"].(map[string]map[string]string)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", libraries["Lib.sol"]["SafeMath"])
}
