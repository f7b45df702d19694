package scan

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTestContainer(t *testing.T, recs []rawRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating container: %v", err)
	}
	defer f.Close()

	// write each record as its own gzip member, mirroring the corpus's
	// gzip-concatenated-members layout.
	for _, r := range recs {
		gz := gzip.NewWriter(f)
		if err := json.NewEncoder(gz).Encode(r); err != nil {
			t.Fatalf("encoding record: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("closing gzip member: %v", err)
		}
	}
	return path
}

func TestScanFile(t *testing.T) {
	path := writeTestContainer(t, []rawRecord{
		{ID: "clueweb22-en0000-00-00000", URL: "http://example.com/a\n", URLHash: "hash-a", Language: "en"},
		{ID: "clueweb22-en0000-00-00001", URL: "http://example.com/b\n", URLHash: "hash-b", Language: "en"},
	})

	records, err := ScanFile(path)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].URL != "http://example.com/a" {
		t.Errorf("URL = %q, want trailing newline stripped", records[0].URL)
	}
	if records[1].ID != "clueweb22-en0000-00-00001" {
		t.Errorf("ID = %q", records[1].ID)
	}
}

func TestCreateShardRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.csv")
	s, err := CreateShard(path)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	s.Close()

	if _, err := CreateShard(path); err == nil {
		t.Error("CreateShard: expected error for already-existing shard path")
	}
}

func TestWorkerRunProcessesAssignThenStop(t *testing.T) {
	path := writeTestContainer(t, []rawRecord{
		{ID: "clueweb22-en0000-00-00000", URL: "http://example.com\n", URLHash: "h", Language: "en"},
	})
	shardPath := filepath.Join(t.TempDir(), "w0.csv")
	shard, err := CreateShard(shardPath)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	in := make(chan Command, 2)
	out := make(chan Result, 2)
	w := &Worker{Index: 0, In: in, Out: out, Shard: shard}

	in <- Command{Kind: Assign, Path: path}
	in <- Command{Kind: Stop}
	close(in)

	go w.Run()

	r1 := <-out
	if r1.Err != nil || r1.Records != 1 {
		t.Fatalf("first result = %+v, want Records=1, Err=nil", r1)
	}
	r2 := <-out
	if !r2.Stopped {
		t.Fatalf("second result = %+v, want Stopped=true", r2)
	}
	shard.Close()
}
