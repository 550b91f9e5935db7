// Command nimbusdb is a small operator CLI over an embedded NimbusDB data
// directory: run one-shot queries, inspect and validate configuration, and
// keep a collection's indexes warm with a long-running demo server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "nimbusdb",
		Short:         "Operate an embedded NimbusDB data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (defaults built in if omitted)")

	root.AddCommand(
		newServeCmd(&configFile),
		newQueryCmd(&configFile),
		newPutCmd(&configFile),
		newConfigCmd(&configFile),
		newBackupCmd(&configFile),
	)
	return root
}
