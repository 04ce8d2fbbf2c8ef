package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDecimal(t *testing.T) {
	assert.True(t, isDecimal("0"))
	assert.True(t, isDecimal("123456789"))
	assert.False(t, isDecimal(""))
	assert.False(t, isDecimal("0x10"))
	assert.False(t, isDecimal("12a"))
	assert.False(t, isDecimal("-5"))
}
