package verification

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *Request {
	return &Request{
		Address:         "0xcc00000000000000000000000000000000000001",
		Sources:         map[string]string{"Token.sol": "contract Token {}", "Base.sol": "contract Base {}"},
		ContractName:    "Token",
		CompilerVersion: "0.8.20",
		Runs:            200,
		EVMVersion:      "paris",
	}
}

func TestRequestKeyDeterministic(t *testing.T) {
	first := requestKey(testRequest())
	second := requestKey(testRequest())
	assert.Equal(t, first, second)

	// Any single input change moves the key
	changed := testRequest()
	changed.Runs = 999
	assert.NotEqual(t, first, requestKey(changed))

	changed = testRequest()
	changed.Sources["Token.sol"] = "contract Token { uint256 n; }"
	assert.NotEqual(t, first, requestKey(changed))

	changed = testRequest()
	changed.ConstructorArguments = "002a"
	assert.NotEqual(t, first, requestKey(changed))
}

func TestCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "verifications.db")
	verificationCache, err := openCache(cachePath)
	require.NoError(t, err)
	defer verificationCache.close()

	key := requestKey(testRequest())
	assert.Nil(t, verificationCache.get(key))

	stored := &Result{Success: true, Message: "verified", ABI: "[]", MainFile: "Token.sol"}
	require.NoError(t, verificationCache.put(key, stored))

	loaded := verificationCache.get(key)
	require.NotNil(t, loaded)
	assert.Equal(t, stored, loaded)

	// Unknown keys still miss
	other := testRequest()
	other.Runs = 1
	assert.Nil(t, verificationCache.get(requestKey(other)))
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "verifications.db")
	verificationCache, err := openCache(cachePath)
	require.NoError(t, err)

	key := requestKey(testRequest())
	require.NoError(t, verificationCache.put(key, &Result{Success: true, Message: "verified"}))
	require.NoError(t, verificationCache.close())

	reopened, err := openCache(cachePath)
	require.NoError(t, err)
	defer reopened.close()
	require.NotNil(t, reopened.get(key))
}
