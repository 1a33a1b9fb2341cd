// Package cli implements the greenreport command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/config"
	"github.com/rshade/greenreport/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the greenreport CLI.
// It loads configuration, wires logging and registers every subcommand.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "greenreport",
		Short:         "Carbon and ESG reporting for IoT power sensors",
		Long:          "greenreport turns sensor power readings into energy, carbon and model-written ESG reports.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "configuration file (default $GREENREPORT_HOME/config.yaml)")
	cmd.PersistentFlags().String("data", "", "read aggregates and readings from a JSON fixture instead of the database")
	cmd.PersistentFlags().String("project-dir", "", "project directory holding .greenreport/config.yaml")
	cmd.PersistentFlags().StringP("output", "o", outputText, "output format: text or json")

	cmd.AddCommand(
		newServeCmd(),
		newReportCmd(),
		newSummaryCmd(),
		newFactorsCmd(),
		newCarbonCmd(),
		newCheckCmd(),
		newIngestCmd(),
		newConfigCmd(),
	)
	return cmd
}

const rootCmdExample = `  # Serve the HTTP API
  greenreport serve

  # Generate a full report over the last three months
  greenreport report generate --months 3

  # Generate a report without calling the model
  greenreport report generate --test-mode --data fixture.json

  # Summarize available data with the coal factor
  greenreport summary --factor coal -o json

  # Convert a current reading to carbon
  greenreport carbon convert --ma 1000 --hours 1

  # Consume sensor readings from Kafka into PostgreSQL
  greenreport ingest`

// loadConfig resolves the project directory and installs the global
// configuration. --config replaces the global and project files.
func loadConfig(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		cmd.PrintErrf("Warning: could not load .env: %v\n", err)
	}

	projectFlag, _ := cmd.Flags().GetString("project-dir")
	cwd, _ := os.Getwd()
	config.SetResolvedProjectDir(config.ResolveProjectDir(cmd.Context(), projectFlag, cwd))

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		config.SetGlobalConfig(cfg)
		return nil
	}
	config.SetGlobalConfig(config.NewWithProjectDir(config.GetResolvedProjectDir()))
	return nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Generate and browse reports"}
	cmd.AddCommand(newReportGenerateCmd(), newReportShowCmd(), newReportListCmd())
	return cmd
}

func newCarbonCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "carbon", Short: "Carbon conversions and time-series carbon"}
	cmd.AddCommand(
		newCarbonConvertCmd(),
		newCarbonReadingsCmd(),
		newCarbonWindowCmd(),
		newCarbonTrendCmd(),
		newCarbonRecentCmd(),
		newCarbonEquivalencyCmd(),
	)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigValidateCmd())
	return cmd
}
