package handlers

import (
	"fmt"
	"os"

	"bizplan/internal/config"
	"bizplan/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bizplan",
		Short: "Generate business-plan sections with Gemini and Brave market research.",
		Long: `bizplan writes business-plan sections in Italian from a YAML company profile.

Sections about the market or the competition can be enriched with market
research collected through the Brave Search API. Output length follows the
requested word count or a named length type (breve, media, dettagliata).`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bizplan.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewResearchCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewUsageCmd())
	rootCmd.AddCommand(NewStateCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(logger.Options{
		Level:     cfg.LogLevel(),
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		Console:   cfg.Logging.Console,
	})

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
}
