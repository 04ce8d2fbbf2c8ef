package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/studio-blockchain/studio-indexer/api"
	"github.com/studio-blockchain/studio-indexer/cmd/exitcodes"
	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/indexer"
	"github.com/studio-blockchain/studio-indexer/logging"
	"github.com/studio-blockchain/studio-indexer/utils"
)

// runCmd represents the command provider for running the indexer
var runCmd = &cobra.Command{
	Use:               "run",
	Short:             "Starts the indexer",
	Long:              `Starts the block ingestion loop and, when enabled, the explorer HTTP API`,
	Args:              cmdValidateRunArgs,
	ValidArgsFunction: cmdValidRunArgs,
	RunE:              cmdRunRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the run command
	err := addRunFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the run command", err)
	}

	// Add the run command and its associated flags to the root command
	rootCmd.AddCommand(runCmd)
}

// cmdValidRunArgs will return which flags and sub-commands are valid for dynamic completion for the run command
func cmdValidRunArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Gather a list of flags that are available to be used in the current command but have not been used yet
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateRunArgs makes sure that there are no positional arguments provided to the run command
func cmdValidateRunArgs(cmd *cobra.Command, args []string) error {
	// Make sure we have no positional args
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("run does not accept any positional arguments, only flags and their associated values")
		cmdLogger.Error("Failed to validate args to the run command", err)
		return err
	}
	return nil
}

// cmdRunRun executes the CLI run command and navigates through the following possibilities:
// #1: We will search for either a custom config file (via --config) or the default (studio-indexer.json).
// If we find it, read it. If we can't read it, throw an error.
// #2: If a custom file was provided (--config was used), and we can't find the file, throw an error.
// #3: If studio-indexer.json can't be found, use the default project configuration.
func cmdRunRun(cmd *cobra.Command, args []string) error {
	var projectConfig *config.ProjectConfig

	// Check to see if --config flag was used and store the value of --config flag
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// If --config was not used, look for `studio-indexer.json` in the current work directory
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the run command", err)
			return err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	// Check to see if the file exists at configPath
	_, existenceError := os.Stat(configPath)

	// Possibility #1: File was found
	if existenceError == nil {
		// Try to read the configuration file and throw an error if something goes wrong
		cmdLogger.Info("Reading the configuration file at: ", configPath)
		projectConfig, err = config.ReadProjectConfigFromFile(configPath)
		if err != nil {
			cmdLogger.Error("Failed to run the run command", err)
			return err
		}
	}

	// Possibility #2: If the --config flag was used, and we couldn't find the file, we'll throw an error
	if configFlagUsed && existenceError != nil {
		cmdLogger.Error("Failed to run the run command", existenceError)
		return existenceError
	}

	// Possibility #3: --config flag was not used and studio-indexer.json was not found, so use the default config
	if !configFlagUsed && existenceError != nil {
		cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))
		projectConfig = config.GetDefaultProjectConfig()
	}

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithRunFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// Reconfigure the global logger before any component grabs a sub-logger from it
	setupGlobalLogging(projectConfig.Logging)

	ix, err := indexer.NewIndexer(*projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to create the indexer", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop our indexing on keyboard interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	// Serve the HTTP API alongside the ingestion loop
	if projectConfig.Server.Enabled {
		go api.Start(ctx, ix)
	}

	runErr := ix.Start(ctx)
	ix.Stop()
	if runErr != nil {
		cmdLogger.Error("The indexer stopped on an error", runErr)
		return exitcodes.NewErrorWithExitCode(runErr, exitcodes.ExitCodeHandledError)
	}
	return nil
}

// setupGlobalLogging replaces the global logger with one matching the project's logging configuration, attaching a
// structured file writer when a log directory is configured.
func setupGlobalLogging(cfg config.LoggingConfig) {
	logging.GlobalLogger = logging.NewLogger(cfg.Level, cfg.EnableConsoleLogging)
	if cfg.LogDirectory == "" {
		return
	}
	if err := utils.MakeDirectory(cfg.LogDirectory); err != nil {
		cmdLogger.Error("Failed to create the log directory", err)
		return
	}
	file, err := utils.CreateFile(cfg.LogDirectory, "indexer.log")
	if err != nil {
		cmdLogger.Error("Failed to create the log file", err)
		return
	}
	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED)
}
