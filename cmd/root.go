package cmd

import (
	"fmt"

	"modio-mod-indexer/config"
	"modio-mod-indexer/logger"

	"github.com/spf13/cobra"
)

var (
	cfg       config.Config
	configDir string
	useTUI    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modio-mod-indexer",
	Short: "Mirrors mod.io mods and indexes the asset paths packed in their archives",
	Long: `Mirrors the mods of a mod.io game into a local archive store and a
relational index of the asset paths packed inside each archive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.InitLogger(logger.Options{
			File:       loaded.LogFile,
			Level:      loaded.LogLevel,
			MaxSizeMB:  loaded.LogMaxSizeMB,
			MaxBackups: loaded.LogMaxBackups,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the command selected by the command line arguments.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing the .env file")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "Show an interactive progress display")
}
