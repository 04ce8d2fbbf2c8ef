package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestInfoString tests one-line rendering with and without VCS metadata.
func TestInfoString(t *testing.T) {
	plain := Info{Version: "1.2.3", GoVersion: "go1.23.0"}
	assert.Equal(t, "studio-indexer 1.2.3 (go1.23.0)", plain.String())

	stamped := Info{
		Version:    "1.2.3",
		Commit:     "1a2b3c4d5e6f7890",
		CommitTime: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Dirty:      true,
		GoVersion:  "go1.23.0",
	}
	assert.Equal(t, "studio-indexer 1.2.3 (commit 1a2b3c4-dirty, built 2026-08-26, go1.23.0)", stamped.String())
}
