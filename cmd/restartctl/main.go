// restartctl is a CLI tool for inspecting and driving the restart
// controller's dependency tree.
//
// Installation:
//
//	go build -o restartctl ./cmd/restartctl
//	mv restartctl /usr/local/bin/
//
// Usage:
//
//	restartctl tree -n my-namespace
//	restartctl status -n my-namespace
//	restartctl restart -n my-namespace db --cascade
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	outputFmt string
	namespace string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "restartctl",
		Short: "Inspect and drive cascading deployment restarts",
		Long: `restartctl is a CLI tool for the restart controller.

It reads the parent annotations of Deployments directly from the cluster,
rebuilding the same dependency tree the controller acts on.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default", "Namespace to operate in")

	// Add subcommands
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(restartCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
