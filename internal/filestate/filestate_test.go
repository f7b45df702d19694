package filestate

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.db")
	conn, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.conn.Exec(`CREATE TABLE files (
		id INTEGER NOT NULL PRIMARY KEY,
		path TEXT UNIQUE,
		records INTEGER,
		state INTEGER,
		job TEXT,
		started TEXT,
		finished TEXT
	)`); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	for i, p := range []string{"a.json.gz", "b.json.gz", "c.json.gz"} {
		if _, err := conn.conn.Exec(`INSERT INTO files (id, path, records, state) VALUES (?, ?, ?, ?)`,
			i+1, p, (i+1)*10, NotStarted); err != nil {
			t.Fatalf("seeding row %d: %v", i, err)
		}
	}
	return conn
}

func TestGetNextBatchLeasesExclusively(t *testing.T) {
	s := newTestStore(t)

	b1, err := s.GetNextBatch("job-1", 2)
	if err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	if len(b1.Paths) != 2 {
		t.Fatalf("expected 2 files in first batch, got %d: %v", len(b1.Paths), b1.Paths)
	}

	b2, err := s.GetNextBatch("job-2", 2)
	if err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	if len(b2.Paths) != 1 {
		t.Fatalf("expected 1 remaining file in second batch, got %d: %v", len(b2.Paths), b2.Paths)
	}
	for _, p := range b1.Paths {
		for _, p2 := range b2.Paths {
			if p == p2 {
				t.Errorf("file %s leased to both job-1 and job-2", p)
			}
		}
	}

	b3, err := s.GetNextBatch("job-3", 2)
	if err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	if len(b3.Paths) != 0 {
		t.Errorf("expected no files left, got %v", b3.Paths)
	}
}

func TestClearBatchResetsState(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetNextBatch("job-1", 3); err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	if !s.ClearBatch("job-1") {
		t.Fatal("ClearBatch returned false")
	}

	b, err := s.GetNextBatch("job-2", 3)
	if err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	if len(b.Paths) != 3 {
		t.Errorf("expected all 3 files available again after ClearBatch, got %d", len(b.Paths))
	}
}

func TestCompleteBatchAndCheckProgress(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetNextBatch("job-1", 3); err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	scanned, total, err := s.CheckProgress()
	if err != nil {
		t.Fatalf("CheckProgress: %v", err)
	}
	if scanned != 0 || total != 3 {
		t.Fatalf("CheckProgress before complete = (%d,%d), want (0,3)", scanned, total)
	}

	if !s.CompleteBatch("job-1") {
		t.Fatal("CompleteBatch returned false")
	}

	scanned, total, err = s.CheckProgress()
	if err != nil {
		t.Fatalf("CheckProgress: %v", err)
	}
	if scanned != 3 || total != 3 {
		t.Fatalf("CheckProgress after complete = (%d,%d), want (3,3)", scanned, total)
	}
}

func TestGetRecordCountForJob(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetNextBatch("job-1", 3); err != nil {
		t.Fatalf("GetNextBatch: %v", err)
	}
	count, err := s.GetRecordCountForJob("job-1")
	if err != nil {
		t.Fatalf("GetRecordCountForJob: %v", err)
	}
	if count != 10+20+30 {
		t.Errorf("GetRecordCountForJob = %d, want %d", count, 60)
	}
}

func TestGenerateRefusesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "exists.db")
	if err := os.WriteFile(out, []byte("x"), 0644); err != nil {
		t.Fatalf("seeding existing output file: %v", err)
	}
	if err := Generate(dir, out, nil); err == nil {
		t.Error("Generate: expected error when output file already exists")
	}
}
