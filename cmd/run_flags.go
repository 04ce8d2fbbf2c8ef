package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studio-blockchain/studio-indexer/config"
)

// addRunFlags adds the various flags for the run command
func addRunFlags() error {
	// Get the default project config so flag help can state the defaults
	defaultConfig := config.GetDefaultProjectConfig()

	// Prevent alphabetical sorting of usage message
	runCmd.Flags().SortFlags = false

	// Config file
	runCmd.Flags().String("config", "", "path to config file")

	// RPC endpoints
	runCmd.Flags().StringSlice("rpc-url", []string{},
		"upstream JSON-RPC endpoint URL(s), ordered by preference")
	runCmd.Flags().Uint64("chain-id", 0,
		fmt.Sprintf("expected chain id, checked on startup (unless a config file is provided, default is %d)", defaultConfig.RPC.ChainID))

	// Ingestion window
	runCmd.Flags().Uint64("start-block", 0,
		fmt.Sprintf("lowest block height to index (unless a config file is provided, default is %d)", defaultConfig.Indexer.StartBlock))
	runCmd.Flags().Uint64("confirmations", 0,
		fmt.Sprintf("number of confirmations to trail behind the chain head (unless a config file is provided, default is %d)", defaultConfig.Indexer.Confirmations))

	// HTTP API
	runCmd.Flags().Int("port", 0,
		fmt.Sprintf("HTTP API port (unless a config file is provided, default is %d)", defaultConfig.Server.Port))
	runCmd.Flags().Bool("no-api", false, "disable the HTTP API")

	// Database connection
	runCmd.Flags().String("db-host", "",
		fmt.Sprintf("PostgreSQL host (unless a config file is provided, default is %q)", defaultConfig.Database.Host))
	runCmd.Flags().Int("db-port", 0,
		fmt.Sprintf("PostgreSQL port (unless a config file is provided, default is %d)", defaultConfig.Database.Port))
	runCmd.Flags().String("db-name", "",
		fmt.Sprintf("PostgreSQL database name (unless a config file is provided, default is %q)", defaultConfig.Database.Database))
	runCmd.Flags().String("db-user", "",
		fmt.Sprintf("PostgreSQL user (unless a config file is provided, default is %q)", defaultConfig.Database.User))
	runCmd.Flags().String("db-password", "", "PostgreSQL password")
	return nil
}

// updateProjectConfigWithRunFlags will update the given projectConfig with any CLI arguments that were provided to
// the run command
func updateProjectConfigWithRunFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	// Update RPC endpoints
	if cmd.Flags().Changed("rpc-url") {
		projectConfig.RPC.URLs, err = cmd.Flags().GetStringSlice("rpc-url")
		if err != nil {
			return err
		}
	}

	// Update expected chain id
	if cmd.Flags().Changed("chain-id") {
		projectConfig.RPC.ChainID, err = cmd.Flags().GetUint64("chain-id")
		if err != nil {
			return err
		}
	}

	// Update the indexed range start
	if cmd.Flags().Changed("start-block") {
		projectConfig.Indexer.StartBlock, err = cmd.Flags().GetUint64("start-block")
		if err != nil {
			return err
		}
	}

	// Update the confirmation depth
	if cmd.Flags().Changed("confirmations") {
		projectConfig.Indexer.Confirmations, err = cmd.Flags().GetUint64("confirmations")
		if err != nil {
			return err
		}
	}

	// Update the API port
	if cmd.Flags().Changed("port") {
		projectConfig.Server.Port, err = cmd.Flags().GetInt("port")
		if err != nil {
			return err
		}
	}

	// Update API enablement
	if cmd.Flags().Changed("no-api") {
		noAPI, err := cmd.Flags().GetBool("no-api")
		if err != nil {
			return err
		}
		projectConfig.Server.Enabled = !noAPI
	}

	// Update database connection parameters
	if cmd.Flags().Changed("db-host") {
		projectConfig.Database.Host, err = cmd.Flags().GetString("db-host")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db-port") {
		projectConfig.Database.Port, err = cmd.Flags().GetInt("db-port")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db-name") {
		projectConfig.Database.Database, err = cmd.Flags().GetString("db-name")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db-user") {
		projectConfig.Database.User, err = cmd.Flags().GetString("db-user")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db-password") {
		projectConfig.Database.Password, err = cmd.Flags().GetString("db-password")
		if err != nil {
			return err
		}
	}
	return nil
}
