// Package commands implements the slo-rank command line.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X .../commands.Version=...".
var Version = "0.1.0"

type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree. A fresh tree per call keeps tests independent.
func NewRootCommand() *cobra.Command {
	globals := &globalOptions{}
	root := &cobra.Command{
		Use:   "slo-rank",
		Short: "Rank potential root causes of an SLO violation",
		Long: `slo-rank compares a normal and an abnormal metrics table and ranks the nodes whose
behaviour best explains the violation of a target node's SLO.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&globals.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	root.AddCommand(newRankCommand(globals))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
