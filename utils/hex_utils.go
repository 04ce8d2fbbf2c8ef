package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// NormalizeAddress lowercases a hex address string and guarantees a 0x prefix. It does not validate length.
func NormalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return address
}

// NormalizeHex lowercases a hex string and strips any 0x prefix.
func NormalizeHex(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
}

// HexStringToAddress converts a hex string (with or without the 0x prefix) to a common.Address. Returns an error if
// the string is not a well-formed 20-byte hex value.
func HexStringToAddress(addressString string) (common.Address, error) {
	trimmed := NormalizeHex(addressString)
	if len(trimmed) != common.AddressLength*2 {
		return common.Address{}, errors.Errorf("invalid address: %s", addressString)
	}
	if !IsHexString(trimmed) {
		return common.Address{}, errors.Errorf("invalid address: %s", addressString)
	}
	return common.HexToAddress(addressString), nil
}

// HexStringsToAddresses converts hex strings to common.Address objects. Returns an error if any string in the list is
// not a well-formed address.
func HexStringsToAddresses(addressStrings []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(addressStrings))
	for _, addressString := range addressStrings {
		address, err := HexStringToAddress(addressString)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// IsHexString indicates whether every character of the provided string (0x prefix excluded) is a hex digit. The empty
// string is considered valid.
func IsHexString(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// TopicToAddress extracts the address packed into the low 20 bytes of a 32-byte log topic.
func TopicToAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[12:])
}
