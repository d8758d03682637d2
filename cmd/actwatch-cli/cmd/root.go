package cmd

import (
	"os"

	"github.com/nfrund/actwatch/internal/logging"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "actwatch-cli",
		Short: "Tools for ACT combat logs and actwatch profiles",
		Long: `actwatch-cli works with the same log decoder, profiles and topics as the
actwatch daemon.

Available commands:
  decode     Decode log lines into JSON events
  profile    Validate ability profiles
  topics     List the topics derived events are published on
  version    Print the version

Use "actwatch-cli [command] --help" for more information about a command.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so command output stays parseable.
			logging.NewWithWriter(cmd.ErrOrStderr(), logFormat, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newVersionCmd(), newDecodeCmd(), newProfileCmd(), newTopicsCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
