package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andrewramsay/clueweb-tools-go/internal/corpus"
	"github.com/andrewramsay/clueweb-tools-go/internal/extract"
)

var (
	extractRoot    string
	extractIDsFile string
	extractKind    string
	extractOutput  string
	extractMode    string
	extractWorkers int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract records by ClueWeb22-ID using the per-container offset index (C3)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("extract")

		kind := corpus.KindText
		if extractKind == "html" {
			kind = corpus.KindHTML
		}
		mode := extract.Passthrough
		if extractMode == "bz2" {
			mode = extract.RecompressBZ2
		}

		ids, err := readIDs(extractIDsFile)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("extract: no IDs read from %s", extractIDsFile)
		}

		jobs := extract.GroupByContainer(extractRoot, kind, ids)
		results, err := extract.Run(jobs, extract.Options{
			Root:      extractRoot,
			Kind:      kind,
			OutputDir: extractOutput,
			Mode:      mode,
			Workers:   extractWorkers,
			Log:       log,
		})
		if err != nil {
			return err
		}

		total := 0
		failures := 0
		for _, r := range results {
			total += r.Extracted
			if r.Err != nil {
				failures++
			}
		}
		log.Infow("extraction complete", "containers", len(results), "records", total, "failed_containers", failures)
		if failures > 0 {
			return fmt.Errorf("extract: %d container(s) failed", failures)
		}
		return nil
	},
}

func readIDs(path string) ([]corpus.DocumentID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: opening ID list %s: %w", path, err)
	}
	defer f.Close()

	var ids []corpus.DocumentID
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := corpus.ParseID(line)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, sc.Err()
}

func init() {
	extractCmd.Flags().StringVar(&extractRoot, "root", "", "ClueWeb22 corpus root directory")
	extractCmd.Flags().StringVar(&extractIDsFile, "ids", "", "file with one ClueWeb22-ID per line")
	extractCmd.Flags().StringVar(&extractKind, "kind", "txt", "corpus kind: txt or html")
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "directory to write extracted records into")
	extractCmd.Flags().StringVar(&extractMode, "mode", "passthrough", "output mode: passthrough or bz2")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 4, "number of containers to process concurrently")
	extractCmd.MarkFlagRequired("root")
	extractCmd.MarkFlagRequired("ids")
	extractCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(extractCmd)
}
