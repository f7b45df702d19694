package cmd

import (
	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
	"github.com/andrewramsay/clueweb-tools-go/internal/supervisor"
)

var (
	supDB          string
	supCores       int
	supOutput      string
	supControlAddr string
)

var supervisorCmd = &cobra.Command{
	Use:   "supervisor",
	Short: "Run the dynamic local worker-pool supervisor (C7)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("supervisor")
		store, err := filestate.Open(supDB, log)
		if err != nil {
			return err
		}
		defer store.Close()

		s := supervisor.New(store, supCores, supOutput, supControlAddr, log)
		return s.Run(stopOnSignal())
	},
}

func init() {
	supervisorCmd.Flags().StringVar(&supDB, "db", "", "path to the file-state SQLite database")
	supervisorCmd.Flags().IntVar(&supCores, "cores", 4, "number of worker goroutines in the pool")
	supervisorCmd.Flags().StringVar(&supOutput, "output", "", "directory to write per-worker CSV shards into")
	supervisorCmd.Flags().StringVar(&supControlAddr, "control-addr", ":23456", "address operator control tools connect to")
	supervisorCmd.MarkFlagRequired("db")
	supervisorCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(supervisorCmd)
}
