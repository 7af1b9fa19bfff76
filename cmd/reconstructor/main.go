// Landscape reconstructor
// Receives OTLP spans, derives landscape records from them and persists the records
package main

import (
	"fmt"
	"os"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

type rootOptions struct {
	configPath string
	dev        bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "reconstructor",
		Short:        "Landscape record reconstruction from OpenTelemetry spans",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "use human readable development logging")

	root.AddCommand(ingestCmd(opts))
	root.AddCommand(sinkCmd(opts))
	root.AddCommand(queryCmd(opts))
	root.AddCommand(standaloneCmd(opts))
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reconstructor %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	}
}

// setup loads the configuration and builds the logger every subcommand shares.
func setup(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(opts.dev)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
