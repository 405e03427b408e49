// Package cmd implements the CLI commands for remctld.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sigmaris/remctl/internal/term"
	"github.com/sigmaris/remctl/internal/version"
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "remctld",
	Short: "Remote command execution server",
	Long: `Remctld executes commands on behalf of authenticated remote clients.

Each command a client may run is bound by a configuration rule to a local
program, an access control list, and an optional identity to run as. The
daemon validates each request against its rule, launches the program with a
controlled environment, and streams its output and exit status back to the
client.`,
	Version: version.Version,
}

var quiet bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress normal output")
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		term.SetQuiet(quiet)
	}
}

// Execute runs the root command and returns any error.
func Execute() error {
	return rootCmd.Execute()
}
