package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fgrzl/hubkit/pkg/config"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

var (
	flags globalFlags
	cfg   config.Config
)

var rootCmd = &cobra.Command{
	Use:           "hubctl",
	Short:         "Issue hub requests and run pubsub bridges",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFromPath(flags.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		config.ApplyEnvOverrides(&loaded)
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = flags.LogLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Log.Format = flags.LogFormat
		}
		cfg = loaded
		slog.SetDefault(cfg.Logger(os.Stderr))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file (default: hub.yaml or configs/hub.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "text", "log format: text|json")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(bridgeCmd)
}
