package verification

import (
	"bytes"

	"github.com/fxamacker/cbor"
)

// metadataHashPrefixes are the CBOR patterns the Solidity compiler uses when appending metadata to bytecode.
// Reference: https://docs.soliditylang.org/en/latest/metadata.html
var metadataHashPrefixes = [][]byte{
	{0xa1, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a1 65 "bzzr0" 0x58 0x20 (solc <= 0.5.8)
	{0xa2, 0x65, 98, 122, 122, 114, 48, 0x58, 0x20},  // a2 65 "bzzr0" 0x58 0x20 (solc >= 0.5.9)
	{0xa2, 0x65, 98, 122, 122, 114, 49, 0x58, 0x20},  // a2 65 "bzzr1" 0x58 0x20 (solc >= 0.5.11)
	{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x58, 0x22}, // a2 64 "ipfs" 0x58 0x22 (solc >= 0.6.0)
}

// bytecodeHashKeys are the metadata keys that carry a source hash.
var bytecodeHashKeys = [...]string{"bzzr0", "bzzr1", "ipfs"}

// embeddedMetadata is the CBOR document the compiler appends to deployed bytecode.
type embeddedMetadata map[string]any

// extractMetadata locates and decodes the trailing metadata document. Returns nil when none is present.
func extractMetadata(bytecode []byte) embeddedMetadata {
	for _, prefix := range metadataHashPrefixes {
		offset := bytes.LastIndex(bytecode, prefix)
		if offset == -1 {
			continue
		}
		var metadata embeddedMetadata
		if err := cbor.Unmarshal(bytecode[offset:], &metadata); err != nil {
			continue
		}
		return metadata
	}
	return nil
}

// sourceHash extracts the source hash bytes from an embedded metadata document, regardless of which hash scheme the
// compiler used.
func (m embeddedMetadata) sourceHash() []byte {
	for _, key := range bytecodeHashKeys {
		if value, ok := m[key]; ok {
			if hash, ok := value.([]byte); ok {
				return hash
			}
		}
	}
	return nil
}

// stripMetadata removes the trailing metadata document and everything after it. The code byte immediately preceding
// the document is kept; the document starts exactly at the detected prefix. When no metadata is found the input is
// returned as-is.
func stripMetadata(bytecode []byte) []byte {
	for _, prefix := range metadataHashPrefixes {
		offset := bytes.LastIndex(bytecode, prefix)
		if offset > 0 {
			return bytecode[:offset]
		}
	}
	return bytecode
}

// compareBytecode checks compiled deployed bytecode against on-chain code. On-chain bytes that extend past the full
// compiled bytecode carry the constructor arguments as a suffix, which must equal the arguments the caller supplied;
// the suffix is taken before any stripping so the metadata tail between code and arguments stays intact. Otherwise
// both sides are compared with their metadata tails removed. On failure the returned sub-code distinguishes a
// metadata-only mismatch from a runtime mismatch.
func compareBytecode(onChain []byte, compiled []byte, constructorArguments []byte) (bool, string) {
	if len(compiled) == 0 {
		return false, MismatchRuntime
	}

	if len(onChain) > len(compiled) && bytes.HasPrefix(onChain, compiled) {
		suffix := onChain[len(compiled):]
		if bytes.Equal(suffix, constructorArguments) {
			return true, ""
		}
		return false, MismatchRuntime
	}

	onChainStripped := stripMetadata(onChain)
	compiledStripped := stripMetadata(compiled)
	if len(compiledStripped) > 0 && bytes.Equal(onChainStripped, compiledStripped) {
		return true, ""
	}

	// A matching embedded source hash means the source is right but the deployment parameters are not
	onChainMetadata := extractMetadata(onChain)
	compiledMetadata := extractMetadata(compiled)
	if onChainMetadata != nil && compiledMetadata != nil {
		onChainHash := onChainMetadata.sourceHash()
		if onChainHash != nil && bytes.Equal(onChainHash, compiledMetadata.sourceHash()) {
			return false, MismatchMetadataOnly
		}
	}
	return false, MismatchRuntime
}
