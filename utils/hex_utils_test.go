package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeAddress tests address normalization lowercases and prefixes its input.
func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("0xABCDEF"))
	assert.Equal(t, "0xabcdef", NormalizeAddress("ABCDEF"))
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xabcdef  "))
	assert.Equal(t, "0x", NormalizeAddress(""))
}

// TestNormalizeHex tests hex normalization strips the 0x prefix.
func TestNormalizeHex(t *testing.T) {
	assert.Equal(t, "abcdef", NormalizeHex("0xABCDEF"))
	assert.Equal(t, "abcdef", NormalizeHex("abcdef"))
	assert.Equal(t, "", NormalizeHex("0x"))
}

// TestHexStringToAddress tests hex string to address conversion with and without prefixes, and rejection of
// malformed input.
func TestHexStringToAddress(t *testing.T) {
	expected := common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")

	addr, err := HexStringToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	require.NoError(t, err)
	assert.EqualValues(t, expected, addr)

	addr, err = HexStringToAddress("6B175474E89094C44DA98B954EEDEAC495271D0F")
	require.NoError(t, err)
	assert.EqualValues(t, expected, addr)

	_, err = HexStringToAddress("0x6b1754")
	assert.Error(t, err)

	_, err = HexStringToAddress("0xzz175474e89094c44da98b954eedeac495271d0f")
	assert.Error(t, err)
}

// TestHexStringsToAddresses tests batch conversion fails on the first malformed entry.
func TestHexStringsToAddresses(t *testing.T) {
	addresses, err := HexStringsToAddresses([]string{
		"0x6b175474e89094c44da98b954eedeac495271d0f",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	})
	require.NoError(t, err)
	assert.Len(t, addresses, 2)

	_, err = HexStringsToAddresses([]string{
		"0x6b175474e89094c44da98b954eedeac495271d0f",
		"not-an-address",
	})
	assert.Error(t, err)
}

// TestIsHexString tests the hex digit check accepts both cases and rejects non-hex characters.
func TestIsHexString(t *testing.T) {
	assert.True(t, IsHexString("0xDeadBeef"))
	assert.True(t, IsHexString("1234567890abcdef"))
	assert.True(t, IsHexString(""))
	assert.False(t, IsHexString("0xdeadbeeg"))
	assert.False(t, IsHexString("hello"))
}

// TestTopicToAddress tests address extraction from the low 20 bytes of a 32-byte topic.
func TestTopicToAddress(t *testing.T) {
	topic := common.HexToHash("0x0000000000000000000000006b175474e89094c44da98b954eedeac495271d0f")
	assert.EqualValues(t, common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), TopicToAddress(topic))
}
