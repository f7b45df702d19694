// Package cmd implements the clueweb command-line surface: the scan
// coordinator/worker pair, the dynamic local supervisor, the offset-indexed
// extractor, the external-merge and sort drivers, and the record counter.
// Grounded on the teacher's cobra root command wiring.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewramsay/clueweb-tools-go/internal/logx"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "clueweb",
	Short: "Tools for scanning, indexing, and extracting records from the ClueWeb22 corpus",
}

// Execute runs the root command, exiting the process with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger(component string) *zap.SugaredLogger {
	return logx.New(verbose, component)
}
