// Package cmd wires the modelwatch command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelwatch",
		Short: "Track and stream model download progress.",
		Long: `modelwatch runs an HTTP service that tracks long-running model
downloads and streams live progress to any number of clients over
Server-Sent Events.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "modelwatch: %v\n", err)
		os.Exit(1)
	}
}
