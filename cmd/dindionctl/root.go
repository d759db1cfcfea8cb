// Command dindionctl inspects ledger data and calendar rules from the shell.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dindion/internal/cli"
	"dindion/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dindionctl",
		Short:         "Operator tools for the dindion ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInstallmentsCmd(), newMonthsCmd(), newSummaryCmd())
	return root
}

// location resolves TIMEZONE the same way the server does.
func location() *time.Location {
	return config.Load().Location()
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
