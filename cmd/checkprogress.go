package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
	"github.com/andrewramsay/clueweb-tools-go/internal/verify"
)

var (
	progressDB        string
	progressResultsDir string
	progressCountsDB  string
)

var checkProgressCmd = &cobra.Command{
	Use:   "check-progress",
	Short: "Verify per-job declared record counts against actual shard line counts (C9)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("check-progress")
		store, err := filestate.Open(progressDB, log)
		if err != nil {
			return err
		}
		defer store.Close()

		counter, err := verify.OpenCounter(progressCountsDB)
		if err != nil {
			return err
		}
		defer counter.Close()

		verdicts, err := verify.Run(store, counter, progressResultsDir, log)
		if err != nil {
			return err
		}

		mismatches := 0
		for _, v := range verdicts {
			fmt.Printf("%-40s db=%-10d file=%-10d %s\n", v.JobID, v.DBCount, v.FileCount, v.Status)
			if v.Status == "mismatch" {
				mismatches++
			}
		}

		scanned, total, err := store.CheckProgress()
		if err != nil {
			return err
		}
		fmt.Printf("\nfiles scanned: %d / %d\n", scanned, total)
		if mismatches > 0 {
			return fmt.Errorf("check-progress: %d job(s) mismatched", mismatches)
		}
		return nil
	},
}

func init() {
	checkProgressCmd.Flags().StringVar(&progressDB, "db", "", "path to the file-state SQLite database")
	checkProgressCmd.Flags().StringVar(&progressResultsDir, "results", "", "directory containing <job_id>.csv shard files")
	checkProgressCmd.Flags().StringVar(&progressCountsDB, "counts-db", "", "path to the line-count cache SQLite database")
	checkProgressCmd.MarkFlagRequired("db")
	checkProgressCmd.MarkFlagRequired("results")
	checkProgressCmd.MarkFlagRequired("counts-db")
	rootCmd.AddCommand(checkProgressCmd)
}
