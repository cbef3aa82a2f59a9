// Package cli implements the crmctl command line.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajharbinger/crm-pipeline/internal/app"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

// Version is set at build time.
var Version = "dev"

var (
	verbose bool

	cfg      *config.Config
	log      logger.Logger
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:     "crmctl",
	Short:   "CRM lead scoring and pipeline maintenance",
	Version: Version,
	Long: `crmctl manages the CRM database and runs background jobs.

Configuration comes from CRM_* environment variables, an optional .env file
and the YAML file named by CRM_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log, closeLog = logger.New(logger.Options{Level: level, File: cfg.LogFile})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(seedRulesCmd)
	rootCmd.AddCommand(createUserCmd)
}

// openApp connects with the loaded configuration. Migrations are left to
// the migrate command.
func openApp() (*app.App, error) {
	return app.New(cfg, log, app.Options{})
}
