// Package cmd defines and implements the CLI commands for the linkharvest
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkharvest",
		Short: "A browser-driven web crawler that extracts values from pages.",
		Long: `linkharvest crawls the web from a configured seed set, following links
with a pool of browser or HTTP engines. On every visited page it evaluates a
configurable extract script and prints each non-null result as one line of
JSON on stdout.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./linkharvest.yaml)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
