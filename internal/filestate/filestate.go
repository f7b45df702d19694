// Package filestate implements the durable, transactional catalogue of
// corpus data files that coordinates distributed scanning (C4 in
// SPEC_FULL.md). It is a direct generalisation of ClueWebFileDatabase,
// backed by modernc.org/sqlite the same way internal/db/db.go opens its
// graph database: WAL journalling, foreign keys on, wrapped errors.
package filestate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// State is the lifecycle stage of one catalogued data file.
type State int

const (
	NotStarted State = 0
	InProgress State = 1
	Done       State = 2
)

// Store wraps the SQLite-backed file catalogue.
type Store struct {
	conn *sql.DB
	log  *zap.SugaredLogger
}

// Open opens an existing catalogue database (created previously by Generate).
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("filestate: opening %s: %w", path, err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("filestate: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("filestate: enabling foreign keys: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{conn: conn, log: log}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Generate walks <root>/txt for *.json.gz containers, cross-references
// <root>/record_counts/txt/*.csv for declared record counts, and writes a
// brand-new catalogue database. It refuses to overwrite an existing file —
// the StateViolation spec §7 requires.
func Generate(root, outputPath string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("filestate: refusing to overwrite existing output file: %s", outputPath)
	}

	type entry struct {
		path    string
		records int64
	}
	dataFiles := make(map[string]*entry)

	txtRoot := filepath.Join(root, "txt")
	err := filepath.Walk(txtRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".json.gz") {
			return nil
		}
		key := strings.TrimSuffix(filepath.Base(p), ".json.gz")
		dataFiles[key] = &entry{path: p}
		return nil
	})
	if err != nil {
		return fmt.Errorf("filestate: walking %s: %w", txtRoot, err)
	}
	log.Infow("discovered data files", "count", len(dataFiles))

	countsRoot := filepath.Join(root, "record_counts", "txt")
	err = filepath.Walk(countsRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".csv") {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening record count file %s: %w", p, err)
		}
		defer f.Close()

		lines, err := readCSVLines(f)
		if err != nil {
			return fmt.Errorf("reading record count file %s: %w", p, err)
		}
		for _, fields := range lines {
			if len(fields) != 2 {
				continue
			}
			fileID, recStr := fields[0], fields[1]
			e, ok := dataFiles[fileID]
			if !ok {
				log.Warnw("record count file references unknown data file", "file_id", fileID, "source", p)
				continue
			}
			recs, err := strconv.ParseInt(recStr, 10, 64)
			if err != nil {
				return fmt.Errorf("parsing record count %q for %s: %w", recStr, fileID, err)
			}
			e.records = recs
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("filestate: walking %s: %w", countsRoot, err)
	}

	keys := make([]string, 0, len(dataFiles))
	for k := range dataFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conn, err := sql.Open("sqlite", outputPath)
	if err != nil {
		return fmt.Errorf("filestate: creating %s: %w", outputPath, err)
	}
	defer conn.Close()

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS files (
		id INTEGER NOT NULL PRIMARY KEY,
		path TEXT UNIQUE,
		records INTEGER,
		state INTEGER,
		job TEXT,
		started TEXT,
		finished TEXT
	)`); err != nil {
		return fmt.Errorf("filestate: creating schema: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("filestate: starting transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO files (id, path, records, state, job, started, finished)
		VALUES (NULL, ?, ?, ?, NULL, NULL, NULL)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("filestate: preparing insert: %w", err)
	}
	for _, k := range keys {
		e := dataFiles[k]
		if _, err := stmt.Exec(e.path, e.records, NotStarted); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("filestate: inserting %s: %w", e.path, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("filestate: committing: %w", err)
	}

	log.Infow("catalogue generated", "rows", len(keys), "output", outputPath)
	return nil
}

// readCSVLines is a tiny hand-rolled reader for the corpus's unquoted,
// two-field "<file_id>,<count>" record_counts CSVs — encoding/csv works
// fine here too, but this avoids pulling in its quoting machinery for a
// format that never needs it.
func readCSVLines(f *os.File) ([][]string, error) {
	var lines [][]string
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		lines = append(lines, strings.SplitN(line, ",", 2))
	}
	return lines, nil
}

// Batch is a lease of file-catalogue rows handed to one job.
type Batch struct {
	IDs   []int64
	Paths []string
}

// GetNextBatch atomically selects up to count NOT_STARTED rows (ordered by
// id ascending) and marks them IN_PROGRESS under jobID, in a single
// transaction — the one operation in this store requiring cross-row
// atomicity (spec §4.4).
func (s *Store) GetNextBatch(jobID string, count int) (Batch, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		s.log.Warnw("get_next_batch: failed to start transaction", "error", err)
		return Batch{}, nil
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id, path FROM files WHERE state = ? ORDER BY id ASC LIMIT ?`, NotStarted, count)
	if err != nil {
		s.log.Warnw("get_next_batch: database error", "error", err)
		return Batch{}, nil
	}
	var batch Batch
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			s.log.Warnw("get_next_batch: scan error", "error", err)
			return Batch{}, nil
		}
		batch.IDs = append(batch.IDs, id)
		batch.Paths = append(batch.Paths, path)
	}
	rows.Close()

	if len(batch.IDs) == 0 {
		return batch, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(batch.IDs)), ",")
	args := make([]any, 0, len(batch.IDs)+2)
	args = append(args, InProgress, jobID)
	for _, id := range batch.IDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE files SET state = ?, job = ?, started = strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now')
		WHERE id IN (%s)`, placeholders)
	if _, err := tx.Exec(query, args...); err != nil {
		s.log.Warnw("get_next_batch: database error", "error", err)
		return Batch{}, nil
	}
	if err := tx.Commit(); err != nil {
		s.log.Warnw("get_next_batch: commit failed", "error", err)
		return Batch{}, nil
	}
	return batch, nil
}

// GetRecordCountForJob returns the sum of record counts catalogued for jobID.
func (s *Store) GetRecordCountForJob(jobID string) (int64, error) {
	var total sql.NullInt64
	err := s.conn.QueryRow(`SELECT SUM(records) FROM files WHERE job = ?`, jobID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("filestate: get_record_count_for_job: %w", err)
	}
	return total.Int64, nil
}

// ClearBatch resets every row owned by jobID back to NotStarted, clearing
// the job column. Used for operator-driven RESET_JOB recovery — there is no
// automatic lease timeout (spec §4.6 design note).
func (s *Store) ClearBatch(jobID string) bool {
	_, err := s.conn.Exec(`UPDATE files SET state = ?, job = ? WHERE job = ?`, NotStarted, "", jobID)
	if err != nil {
		s.log.Warnw("clear_batch: database error", "error", err)
		return false
	}
	return true
}

// CompleteBatch marks every row owned by jobID as Done.
func (s *Store) CompleteBatch(jobID string) bool {
	_, err := s.conn.Exec(`UPDATE files SET state = ?, finished = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE job = ?`, Done, jobID)
	if err != nil {
		s.log.Warnw("complete_batch: database error", "error", err)
		return false
	}
	return true
}

// CompleteBatchFiles marks the named files as Done individually, used by
// dynamic workers that don't operate on a whole job's worth of a batch at
// once (spec §4.7).
func (s *Store) CompleteBatchFiles(paths []string) bool {
	tx, err := s.conn.Begin()
	if err != nil {
		s.log.Warnw("complete_batch_files: database error", "error", err)
		return false
	}
	stmt, err := tx.Prepare(`UPDATE files SET state = ?, finished = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE path = ?`)
	if err != nil {
		tx.Rollback()
		s.log.Warnw("complete_batch_files: database error", "error", err)
		return false
	}
	for _, p := range paths {
		if _, err := stmt.Exec(Done, p); err != nil {
			stmt.Close()
			tx.Rollback()
			s.log.Warnw("complete_batch_files: database error", "error", err)
			return false
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		s.log.Warnw("complete_batch_files: commit failed", "error", err)
		return false
	}
	return true
}

// CheckProgress returns (files scanned, files total).
func (s *Store) CheckProgress() (scanned, total int64, err error) {
	if err := s.conn.QueryRow(`SELECT COUNT(state) FROM files WHERE state = ?`, Done).Scan(&scanned); err != nil {
		return 0, 0, fmt.Errorf("filestate: check_progress (scanned): %w", err)
	}
	if err := s.conn.QueryRow(`SELECT COUNT(state) FROM files`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("filestate: check_progress (total): %w", err)
	}
	return scanned, total, nil
}
