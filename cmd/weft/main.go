// Command weft runs the workflow engine: serve an HTTP API with
// trigger loops, run a workflow once, validate definitions, or resume
// and approve suspended executions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Declarative workflow engine for edge deployments",
	Long: `weft executes YAML-defined workflows of typed steps with durable
checkpoints, result caching, retries, and human-in-the-loop approvals.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./weft.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(approveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
