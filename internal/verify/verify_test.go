package verify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCounterCountLinesAndCache(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "job-1.csv")
	if err := os.WriteFile(csvPath, []byte("a\nb\nc\n"), 0644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	counter, err := OpenCounter(filepath.Join(dir, "counts.db"))
	if err != nil {
		t.Fatalf("OpenCounter: %v", err)
	}
	defer counter.Close()

	n, err := counter.CountLines(csvPath)
	if err != nil {
		t.Fatalf("CountLines: %v", err)
	}
	if n != 3 {
		t.Fatalf("CountLines = %d, want 3", n)
	}

	// overwrite the file with fewer lines; cached count should still win
	if err := os.WriteFile(csvPath, []byte("a\n"), 0644); err != nil {
		t.Fatalf("rewriting csv: %v", err)
	}
	n2, err := counter.CountLines(csvPath)
	if err != nil {
		t.Fatalf("CountLines (cached): %v", err)
	}
	if n2 != 3 {
		t.Errorf("CountLines (cached) = %d, want cached value 3", n2)
	}
}
