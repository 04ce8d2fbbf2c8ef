package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/studio-blockchain/studio-indexer/logging"
)

// rootCmd is the top-level CLI command from which every sub-command hangs.
var rootCmd = &cobra.Command{
	Use:   "studio-indexer",
	Short: "An EVM chain indexer with an explorer API",
	Long:  "studio-indexer ingests blocks from an EVM-compatible chain into PostgreSQL and serves an explorer HTTP API",
}

// cmdLogger is the logger used for command-level output before the configured global logger takes over.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true)

// Execute provides an exportable function that will execute the root command
func Execute() error {
	return rootCmd.Execute()
}
