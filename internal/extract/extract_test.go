package extract

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrewramsay/clueweb-tools-go/internal/corpus"
)

func writeTestContainer(t *testing.T, root string, id corpus.DocumentID, members [][]byte) {
	t.Helper()
	dataPath, offsetPath := corpus.DataFilePath(root, id, corpus.KindText)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	df, err := os.Create(dataPath)
	if err != nil {
		t.Fatalf("creating data file: %v", err)
	}
	defer df.Close()

	of, err := os.Create(offsetPath)
	if err != nil {
		t.Fatalf("creating offset file: %v", err)
	}
	defer of.Close()

	var pos int64
	for _, m := range members {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write(m)
		gz.Close()

		start := pos
		if _, err := df.Write(buf.Bytes()); err != nil {
			t.Fatalf("writing gzip member: %v", err)
		}
		pos += int64(buf.Len())
		fmt.Fprintf(of, "%010d\n%010d\n", start, pos)
	}
}

func TestGroupByContainer(t *testing.T) {
	id1, _ := corpus.ParseID("clueweb22-en0000-00-00000")
	id2, _ := corpus.ParseID("clueweb22-en0000-00-00001")
	id3, _ := corpus.ParseID("clueweb22-en0000-01-00000")

	jobs := GroupByContainer("/root", corpus.KindText, []corpus.DocumentID{id1, id2, id3})
	if len(jobs) != 2 {
		t.Fatalf("expected 2 distinct containers, got %d", len(jobs))
	}
	for path, j := range jobs {
		if path == "" {
			t.Error("empty container path")
		}
		if len(j.IDs) == 0 {
			t.Error("job with no IDs")
		}
	}
}

func TestRunPassthroughExtractsRecords(t *testing.T) {
	root := t.TempDir()
	id1, _ := corpus.ParseID("clueweb22-en0000-00-00000")
	id2, _ := corpus.ParseID("clueweb22-en0000-00-00001")
	writeTestContainer(t, root, id1, [][]byte{[]byte("record-0"), []byte("record-1")})

	jobs := GroupByContainer(root, corpus.KindText, []corpus.DocumentID{id1, id2})
	outDir := t.TempDir()

	results, err := Run(jobs, Options{Root: root, Kind: corpus.KindText, OutputDir: outDir, Mode: Passthrough, Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result (1 container), got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("extraction error: %v", results[0].Err)
	}
	if results[0].Extracted != 2 {
		t.Fatalf("extracted = %d, want 2", results[0].Extracted)
	}

	outPath := filepath.Join(outDir, "txt", "en0000-00", "en0000-00-00000.gz")
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected output file %s: %v", outPath, err)
	}
}

func TestRunFailsFastOnMissingContainer(t *testing.T) {
	root := t.TempDir()
	id1, _ := corpus.ParseID("clueweb22-en0000-99-00000")
	jobs := GroupByContainer(root, corpus.KindText, []corpus.DocumentID{id1})

	if _, err := Run(jobs, Options{Root: root, Kind: corpus.KindText, OutputDir: t.TempDir(), Workers: 1}); err == nil {
		t.Error("Run: expected error for missing container")
	}
}
