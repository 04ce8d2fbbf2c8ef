package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddWriterDeduplicates ensures that adding the same writer twice keeps a single registration.
func TestAddWriterDeduplicates(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)

	logger.AddWriter(os.Stdout, STRUCTURED)
	logger.AddWriter(os.Stdout, STRUCTURED)

	assert.Equal(t, 1, len(logger.writers))
}

// TestStructuredOutput verifies that logs sent to a structured writer are valid JSON carrying the sub-logger
// context key, the message, and any chained error.
func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)
	subLogger := logger.NewSubLogger("module", "test")

	subLogger.Info("indexed block ", 42, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry["module"])
	assert.Equal(t, "indexed block 42", entry["message"])
	assert.Equal(t, "boom", entry["error"])
}

// TestStructuredLogInfo verifies that a StructuredLogInfo argument is emitted as a nested object.
func TestStructuredLogInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)

	logger.Warn("dropped metadata request", StructuredLogInfo{"tokenAddress": "0xabc", "tokenId": "7"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	info, ok := entry["info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0xabc", info["tokenAddress"])
}

// TestLevelFiltering ensures messages below the configured level are not written.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.WarnLevel, false, &buf)

	logger.Info("should be filtered")
	assert.Zero(t, buf.Len())

	logger.Error("should be written")
	assert.NotZero(t, buf.Len())
}
