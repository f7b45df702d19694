package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/coordinator"
	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
)

var (
	coordDB          string
	coordJobsAddr    string
	coordControlAddr string
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the static batch-distribution coordinator (C6)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("coordinator")
		store, err := filestate.Open(coordDB, log)
		if err != nil {
			return err
		}
		defer store.Close()

		c := coordinator.New(store, coordJobsAddr, coordControlAddr, log)
		return c.Run(stopOnSignal())
	},
}

func stopOnSignal() <-chan struct{} {
	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()
	return stop
}

func init() {
	coordinatorCmd.Flags().StringVar(&coordDB, "db", "", "path to the file-state SQLite database")
	coordinatorCmd.Flags().StringVar(&coordJobsAddr, "jobs-addr", ":23456", "address workers request batches from")
	coordinatorCmd.Flags().StringVar(&coordControlAddr, "control-addr", ":23457", "address operator control tools connect to")
	coordinatorCmd.MarkFlagRequired("db")
	rootCmd.AddCommand(coordinatorCmd)
}
