package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/merge"
)

var (
	mergeInputDir          string
	mergeOutput            string
	mergeAllowUnsorted     bool
	mergeProgressEvery     int
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "K-way merge sorted CSV shards into one globally sorted index (C8)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("merge")

		entries, err := listSortedShards(mergeInputDir)
		if err != nil {
			return err
		}
		for _, path := range entries {
			if err := merge.AssertSorted(path); err != nil {
				if !mergeAllowUnsorted {
					return fmt.Errorf("merge: %w (pass --allow-unsorted-shards to sort it in place first)", err)
				}
				log.Warnw("shard not sorted, sorting in place", "path", path, "error", err)
				if err := merge.SortInPlace(path); err != nil {
					return fmt.Errorf("merge: sorting %s in place: %w", path, err)
				}
			}
		}

		n, err := merge.Merge(mergeInputDir, mergeOutput, merge.Options{ProgressEvery: mergeProgressEvery, Log: log})
		if err != nil {
			return err
		}
		log.Infow("merge complete", "lines", n, "output", mergeOutput)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeInputDir, "input", "", "directory containing *.csv.sorted shards")
	mergeCmd.Flags().StringVar(&mergeOutput, "output", "", "path to write the merged, globally sorted index to")
	mergeCmd.Flags().BoolVar(&mergeAllowUnsorted, "allow-unsorted-shards", false,
		"sort a violating shard in place instead of failing (Open Question #2)")
	mergeCmd.Flags().IntVar(&mergeProgressEvery, "progress-every", 1_000_000, "log progress every N merged lines")
	mergeCmd.MarkFlagRequired("input")
	mergeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(mergeCmd)
}
