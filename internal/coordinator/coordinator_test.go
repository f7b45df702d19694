package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
	"github.com/andrewramsay/clueweb-tools-go/internal/protocol"
)

func mkdirAndWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func TestCoordinatorNewJobAndFinished(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalogue.db")

	if err := filestate.Generate(seedCorpus(t), dbPath, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	store, err := filestate.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := New(store, "127.0.0.1:0", "127.0.0.1:0", nil)

	reply, exit := c.handle(protocol.Message{Type: protocol.NewJob, JobID: "worker-1", WantFiles: 10})
	if exit {
		t.Fatal("NEWJOB should not trigger exit")
	}
	if len(reply.BatchPaths) == 0 {
		t.Fatal("expected at least one file in batch")
	}

	reply, exit = c.handle(protocol.Message{Type: protocol.Finished, JobID: "worker-1", NumFiles: len(reply.BatchPaths), Success: true})
	if exit {
		t.Fatal("FINISHED should not trigger exit")
	}
	if reply.Type != protocol.Ack {
		t.Errorf("FINISHED reply type = %v, want Ack", reply.Type)
	}

	scanned, total, err := store.CheckProgress()
	if err != nil {
		t.Fatalf("CheckProgress: %v", err)
	}
	if scanned != total {
		t.Errorf("CheckProgress = (%d,%d), want all files scanned", scanned, total)
	}
}

func TestCoordinatorExitSignal(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalogue.db")
	if err := filestate.Generate(seedCorpus(t), dbPath, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	store, err := filestate.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := New(store, "127.0.0.1:0", "127.0.0.1:0", nil)
	_, exit := c.handle(protocol.Message{Type: protocol.Exit})
	if !exit {
		t.Error("EXIT message should signal exit=true")
	}
}

func TestCoordinatorResetJob(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalogue.db")
	if err := filestate.Generate(seedCorpus(t), dbPath, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	store, err := filestate.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := New(store, "127.0.0.1:0", "127.0.0.1:0", nil)
	reply, _ := c.handle(protocol.Message{Type: protocol.NewJob, JobID: "worker-1", WantFiles: 100})
	n := len(reply.BatchPaths)
	if n == 0 {
		t.Fatal("expected files leased")
	}

	c.handle(protocol.Message{Type: protocol.ResetJob, JobID: "worker-1"})

	reply2, _ := c.handle(protocol.Message{Type: protocol.NewJob, JobID: "worker-2", WantFiles: 100})
	if len(reply2.BatchPaths) != n {
		t.Errorf("after RESET_JOB expected %d files available again, got %d", n, len(reply2.BatchPaths))
	}
}

// seedCorpus builds a minimal on-disk ClueWeb22-shaped txt tree so
// filestate.Generate has something to walk.
func seedCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeGzipPlaceholder(t, filepath.Join(root, "txt", "en", "en00", "en0000", "en0000-00.json.gz"))
	writeGzipPlaceholder(t, filepath.Join(root, "txt", "en", "en00", "en0000", "en0000-01.json.gz"))
	writeCountsCSV(t, filepath.Join(root, "record_counts", "txt", "en00_counts.csv"),
		[][2]string{{"en0000-00", "10"}, {"en0000-01", "20"}})
	return root
}

func writeGzipPlaceholder(t *testing.T, path string) {
	t.Helper()
	if err := mkdirAndWrite(path, []byte{}); err != nil {
		t.Fatalf("writing placeholder %s: %v", path, err)
	}
}

func writeCountsCSV(t *testing.T, path string, rows [][2]string) {
	t.Helper()
	var buf []byte
	for _, r := range rows {
		buf = append(buf, []byte(r[0]+","+r[1]+"\n")...)
	}
	if err := mkdirAndWrite(path, buf); err != nil {
		t.Fatalf("writing counts csv %s: %v", path, err)
	}
}
