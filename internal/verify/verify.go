// Package verify implements the progress counter/verifier (C9 in
// SPEC_FULL.md): comparing the declared record count for each job in the
// internal/filestate catalogue against the actual line count of that job's
// output shard, caching per-file counts in a second SQLite database.
// Grounded on clueweb_counter.py.
package verify

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
)

const countBufSize = 8 << 20 // 8MiB, matching clueweb_counter.py's default bufsz

// Counter caches per-shard line counts across repeated runs, so a re-run
// over a partially-verified results directory doesn't recount everything.
type Counter struct {
	conn *sql.DB
}

// OpenCounter opens (creating if needed) the counts cache database.
func OpenCounter(path string) (*Counter, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("verify: opening counts database %s: %w", path, err)
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS counts (filename TEXT UNIQUE, count INTEGER)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("verify: creating counts schema: %w", err)
	}
	return &Counter{conn: conn}, nil
}

func (c *Counter) Close() error {
	return c.conn.Close()
}

// CountLines returns the number of lines in filename, using the cache when
// present and inserting a fresh count otherwise.
func (c *Counter) CountLines(filename string) (int64, error) {
	base := filepath.Base(filename)

	var cached sql.NullInt64
	err := c.conn.QueryRow(`SELECT count FROM counts WHERE filename = ?`, base).Scan(&cached)
	if err == nil && cached.Valid {
		return cached.Int64, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("verify: querying counts cache: %w", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("verify: opening %s: %w", filename, err)
	}
	defer f.Close()

	var lines int64
	buf := make([]byte, countBufSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			lines += int64(strings.Count(string(buf[:n]), "\n"))
		}
		if rerr != nil {
			break
		}
	}

	if _, err := c.conn.Exec(`INSERT INTO counts (filename, count) VALUES (?, ?)`, base, lines); err != nil {
		return 0, fmt.Errorf("verify: caching count for %s: %w", base, err)
	}
	return lines, nil
}

// Verdict is the outcome of comparing one job's declared vs. actual counts.
type Verdict struct {
	JobID     string
	DBCount   int64
	FileCount int64
	Status    string // "ok", "mismatch", "skipped-empty"
}

// Run walks resultsDir for "<job_id>.csv" files, compares each against
// store's declared record count for that job, and returns one Verdict per
// file. It never mutates the file-state store — diagnostic only.
func Run(store *filestate.Store, counter *Counter, resultsDir string, log *zap.SugaredLogger) ([]Verdict, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var verdicts []Verdict
	err := filepath.Walk(resultsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".csv") {
			return nil
		}
		jobID := strings.TrimSuffix(filepath.Base(path), ".csv")

		dbCount, err := store.GetRecordCountForJob(jobID)
		if err != nil {
			return fmt.Errorf("getting record count for job %s: %w", jobID, err)
		}
		fileCount, err := counter.CountLines(path)
		if err != nil {
			return fmt.Errorf("counting lines in %s: %w", path, err)
		}

		v := Verdict{JobID: jobID, DBCount: dbCount, FileCount: fileCount}
		switch {
		case fileCount == 0:
			v.Status = "skipped-empty"
			log.Infow("skipping empty results file", "job", jobID)
		case dbCount == fileCount:
			v.Status = "ok"
			log.Infow("record counts match", "job", jobID, "db", dbCount, "file", fileCount)
		default:
			v.Status = "mismatch"
			log.Warnw("record count mismatch", "job", jobID, "db", dbCount, "file", fileCount)
		}
		verdicts = append(verdicts, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify: walking %s: %w", resultsDir, err)
	}
	return verdicts, nil
}
