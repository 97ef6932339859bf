// Command runnerctl drives a coordinator against the simulated host so
// background tasks and location watches can be exercised from a shell.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "runnerctl",
		Short:        "Run background tasks and location watches on a simulated host",
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("verbose", false, "Log at debug level")
	root.PersistentFlags().String("store", "memory", "Flag store: memory, sqlite, postgres or redis")
	root.PersistentFlags().String("dsn", "", "Flag store location: sqlite path, postgres DSN or redis address")

	root.AddCommand(runCmd())
	root.AddCommand(migrateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
