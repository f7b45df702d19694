package cmd

import (
	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/extsort"
)

var (
	sortSrcDir    string
	sortDstDir    string
	sortCores     int
	sortBufferGB  int
)

var sortShardsCmd = &cobra.Command{
	Use:   "sort-shards",
	Short: "Sort unsorted per-worker CSV shards with GNU sort, producing merge-ready *.csv.sorted files",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("sort-shards")
		n, err := extsort.SortAll(sortSrcDir, sortDstDir, extsort.Options{
			Cores:        sortCores,
			BufferGB:     sortBufferGB,
			IgnoreLocale: true,
			Log:          log,
		})
		if err != nil {
			return err
		}
		log.Infow("sort-shards complete", "sorted", n)
		return nil
	},
}

func init() {
	sortShardsCmd.Flags().StringVar(&sortSrcDir, "input", "", "directory containing unsorted *.csv shards")
	sortShardsCmd.Flags().StringVar(&sortDstDir, "output", "", "directory to write *.csv.sorted files into")
	sortShardsCmd.Flags().IntVar(&sortCores, "cores", 8, "sort --parallel value")
	sortShardsCmd.Flags().IntVar(&sortBufferGB, "buffer-gb", 10, "sort -S buffer size in GiB")
	sortShardsCmd.MarkFlagRequired("input")
	sortShardsCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(sortShardsCmd)
}
