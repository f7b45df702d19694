package cmd

import (
	"os"
	"path/filepath"
	"strings"
)

// listSortedShards returns the paths of every "*.csv.sorted" file directly
// inside dir, for the pre-merge sortedness check.
func listSortedShards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv.sorted") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
