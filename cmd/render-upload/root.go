package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
	flagDevMode    bool
	flagLogFormat  string
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "render-upload",
		Short:         "Upload nexrender output to Google Drive",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&flagDevMode, "dev", false, "use in-memory fakes instead of Google and AWS")
	cmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newExecCmd())
	cmd.AddCommand(newEncryptCmd())

	return cmd
}

// loadConfig applies defaults, the config file, the environment and finally
// the flags the user set explicitly.
func loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Resolve(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("dev") {
		cfg.DevMode = flagDevMode
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	return nil
}

func buildLogger(cmd *cobra.Command) *slog.Logger {
	return resolvedCfg.NewLogger(cmd.ErrOrStderr(), flagVerbose)
}
