package verification

import (
	"testing"

	"github.com/fxamacker/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withMetadataTail appends a well-formed ipfs metadata document to bytecode, the way solc >= 0.6.0 does. Canonical
// CBOR encoding of this map yields exactly the a2 64 "ipfs" 58 22 prefix the detection table looks for.
func withMetadataTail(code []byte, ipfsHash []byte) []byte {
	document, err := cbor.Marshal(map[string]any{
		"ipfs": ipfsHash,
		"solc": []byte{0, 8, 20},
	}, cbor.EncOptions{Canonical: true})
	if err != nil {
		panic(err)
	}
	out := append(append([]byte{}, code...), document...)
	// solc closes the tail with the document length in two big-endian bytes
	return append(out, byte(len(document)>>8), byte(len(document)))
}

func ipfsHash(seed byte) []byte {
	hash := make([]byte, 0x22)
	for i := range hash {
		hash[i] = seed
	}
	return hash
}

func TestStripMetadata(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40}
	tagged := withMetadataTail(code, ipfsHash(0x11))

	assert.Equal(t, code, stripMetadata(tagged))

	// Bytecode with no metadata passes through untouched
	assert.Equal(t, code, stripMetadata(code))
}

func TestExtractMetadataHash(t *testing.T) {
	tagged := withMetadataTail([]byte{0x60, 0x80}, ipfsHash(0x22))
	metadata := extractMetadata(tagged)
	require.NotNil(t, metadata)
	assert.Equal(t, ipfsHash(0x22), metadata.sourceHash())

	assert.Nil(t, extractMetadata([]byte{0x60, 0x80}))
}

func TestCompareBytecodeExactMatch(t *testing.T) {
	runtime := []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	onChain := withMetadataTail(runtime, ipfsHash(0x33))
	compiled := withMetadataTail(runtime, ipfsHash(0x44))

	// Differing metadata hashes do not block a runtime match
	match, subCode := compareBytecode(onChain, compiled, nil)
	assert.True(t, match)
	assert.Empty(t, subCode)
}

func TestCompareBytecodeConstructorArguments(t *testing.T) {
	runtime := []byte{0x60, 0x80, 0x60, 0x40}
	arguments := []byte{0x00, 0x00, 0x00, 0x2a}
	compiled := withMetadataTail(runtime, ipfsHash(0x33))

	// The arguments trail the complete compiled bytecode, metadata tail included
	onChain := append(append([]byte{}, compiled...), arguments...)
	match, _ := compareBytecode(onChain, compiled, arguments)
	assert.True(t, match)

	// Wrong arguments fail
	match, subCode := compareBytecode(onChain, compiled, []byte{0x00, 0x00, 0x00, 0x2b})
	assert.False(t, match)
	assert.Equal(t, MismatchRuntime, subCode)

	// Missing arguments fail
	match, _ = compareBytecode(onChain, compiled, nil)
	assert.False(t, match)
}

func TestCompareBytecodeMetadataOnlyMismatch(t *testing.T) {
	// Same source hash, different runtime: deployment parameters differ
	onChain := withMetadataTail([]byte{0x60, 0x80, 0x11}, ipfsHash(0x55))
	compiled := withMetadataTail([]byte{0x60, 0x80, 0x22}, ipfsHash(0x55))

	match, subCode := compareBytecode(onChain, compiled, nil)
	assert.False(t, match)
	assert.Equal(t, MismatchMetadataOnly, subCode)
}

func TestCompareBytecodeRuntimeMismatch(t *testing.T) {
	onChain := withMetadataTail([]byte{0x60, 0x80, 0x11}, ipfsHash(0x66))
	compiled := withMetadataTail([]byte{0x60, 0x80, 0x22}, ipfsHash(0x77))

	match, subCode := compareBytecode(onChain, compiled, nil)
	assert.False(t, match)
	assert.Equal(t, MismatchRuntime, subCode)
}
