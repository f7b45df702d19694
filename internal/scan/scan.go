// Package scan implements the metadata scan worker (C5 in SPEC_FULL.md):
// reading a ClueWeb22 .json.gz container's JSON-Lines records and writing
// (ClueWeb22-ID, URL, URL-hash, Language) rows to a per-worker CSV shard.
// Grounded on clueweb_metadata_scanner.py's gather_metadata.
package scan

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Record is one row extracted from a container, matching the four fields
// the original tooling keeps (document body/HTML is never touched — an
// explicit Non-goal).
type Record struct {
	ID       string
	URL      string
	URLHash  string
	Language string
}

type rawRecord struct {
	ID       string `json:"ClueWeb22-ID"`
	URL      string `json:"URL"`
	URLHash  string `json:"URL-hash"`
	Language string `json:"Language"`
}

// ScanFile reads one gzip-concatenated-members JSON-Lines container and
// returns its records. gzip.Reader defaults to Multistream(true), which
// transparently spans the concatenated per-record gzip members the corpus
// uses — no special handling needed on top of the stdlib reader.
func ScanFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scan: opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("scan: opening gzip stream in %s: %w", path, err)
	}
	defer gz.Close()

	var records []Record
	dec := json.NewDecoder(bufio.NewReaderSize(gz, 1<<20))
	for {
		var raw rawRecord
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("scan: decoding record in %s: %w", path, err)
		}
		records = append(records, Record{
			ID:       raw.ID,
			URL:      strings.TrimRight(raw.URL, "\n"),
			URLHash:  raw.URLHash,
			Language: raw.Language,
		})
	}
	return records, nil
}

// Shard is an exclusively-created per-worker output CSV. The caller must
// fail loudly (spec's StateViolation) if the shard already exists rather
// than silently appending to or truncating partial prior output.
type Shard struct {
	f *os.File
	w *csv.Writer
}

// CreateShard opens path for exclusive creation (os.O_EXCL) — an existing
// file at this path is treated as a hard error, not overwritten.
func CreateShard(path string) (*Shard, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("scan: shard already exists or cannot be created at %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.UseCRLF = false
	return &Shard{f: f, w: w}, nil
}

func (s *Shard) WriteRecord(r Record) error {
	return s.w.Write([]string{r.ID, r.URL, r.URLHash, r.Language})
}

func (s *Shard) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return fmt.Errorf("scan: flushing shard: %w", err)
	}
	return s.f.Close()
}

// Command is a tagged-union instruction sent to a Worker over its command
// channel. Modelling per-worker pipes as Go channels carrying this variant
// is the allowance SPEC_FULL.md's C5 section makes explicit, in place of literal
// multiprocessing.Pipe or OS pipes.
type Command struct {
	Kind CommandKind
	Path string // valid when Kind == Assign
}

type CommandKind int

const (
	Assign CommandKind = iota
	Pause
	Stop
)

// Result is sent back from a Worker after processing one Command. Path is
// set on a successful Assign so the caller can mark that file DONE in the
// file-state store.
type Result struct {
	WorkerIndex int
	Path        string
	Records     int
	Err         error
	Stopped     bool
}

// Worker scans one container at a time, driven by Commands sent on In.
type Worker struct {
	Index int
	In    chan Command
	Out   chan Result
	Shard *Shard
	Log   *zap.SugaredLogger
}

// Run processes Commands from w.In until it receives Stop or In is closed.
// A blocking receive on In is the pause mechanism spec §5 describes — a
// worker with no pending Assign simply isn't scheduled.
func (w *Worker) Run() {
	log := w.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	filesDone := 0
	for cmd := range w.In {
		switch cmd.Kind {
		case Stop:
			w.Out <- Result{WorkerIndex: w.Index, Stopped: true}
			return
		case Pause:
			// no-op: the supervisor simply stops sending Assign commands;
			// this case exists so a Pause sitting in the channel doesn't
			// get misread as a zero-value Assign.
			continue
		case Assign:
			records, err := ScanFile(cmd.Path)
			if err != nil {
				log.Errorw("scan failed", "worker", w.Index, "path", cmd.Path, "error", err)
				w.Out <- Result{WorkerIndex: w.Index, Err: err}
				continue
			}
			var werr error
			for _, r := range records {
				if werr = w.Shard.WriteRecord(r); werr != nil {
					break
				}
			}
			if werr != nil {
				log.Errorw("shard write failed", "worker", w.Index, "path", cmd.Path, "error", werr)
				w.Out <- Result{WorkerIndex: w.Index, Err: werr}
				continue
			}
			filesDone++
			w.Out <- Result{WorkerIndex: w.Index, Path: cmd.Path, Records: len(records)}
		}
	}
}
