// Package cmd contains the stager's command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "concord-stager",
	Short: "Stage embeddable simulations into offline packages",
	Long: `concord-stager resolves catalog preview URLs, downloads each
embeddable application's document, configuration, and assets, and packages
every application into a deterministic zip archive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (optional)")
}
