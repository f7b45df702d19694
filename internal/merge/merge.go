// Package merge implements the external k-way merger (C8 in SPEC_FULL.md):
// streaming a min-heap merge over already-sorted *.csv.sorted shard files,
// keyed by the first CSV field (ClueWeb22-ID). Grounded on
// clueweb_heap_sort.py, with the heap itself modelled on
// internal/db/context.go's dijkstraHeap (container/heap.Interface, same
// slice-of-struct shape, same deterministic-tie-break discipline).
package merge

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// shard wraps one sorted input file's reader, tracking enough state to
// refill the heap after each pop.
type shard struct {
	name string
	f    *os.File
	r    *bufio.Reader
}

func (s *shard) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if line == "" && err == io.EOF {
		return "", io.EOF
	}
	return line, nil
}

// entry is one min-heap slot: the sort key, the full line, and the shard it
// came from so a fresh line can be pulled from the same shard after a pop.
type entry struct {
	key  string
	line string
	src  *shard
	seq  int64 // insertion sequence, breaks ties deterministically
}

type lineHeap []entry

func (h lineHeap) Len() int { return len(h) }
func (h lineHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}
func (h lineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *lineHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *lineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func firstField(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		return line[:i]
	}
	return line
}

// Options controls Merge's progress reporting cadence.
type Options struct {
	ProgressEvery int // lines; 0 disables progress logging
	Log           *zap.SugaredLogger
}

// Merge streams every "*.csv.sorted" file under inputDir into outputPath in
// fully sorted order, using bounded memory: one open *os.File per shard plus
// one buffered line, closing and dropping a shard's heap entry as soon as
// it's exhausted.
func Merge(inputDir, outputPath string, opts Options) (linesWritten int64, err error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 1_000_000
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return 0, fmt.Errorf("merge: reading input directory %s: %w", inputDir, err)
	}

	var shards []*shard
	defer func() {
		for _, s := range shards {
			s.f.Close()
		}
	}()

	var h lineHeap
	var seq int64
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".csv.sorted") {
			continue
		}
		path := filepath.Join(inputDir, de.Name())
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("merge: opening %s: %w", path, err)
		}
		s := &shard{name: de.Name(), f: f, r: bufio.NewReaderSize(f, 1<<20)}
		shards = append(shards, s)

		line, err := s.readLine()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("merge: reading first line of %s: %w", path, err)
		}
		heap.Push(&h, entry{key: firstField(line), line: line, src: s, seq: seq})
		seq++
	}
	log.Infow("opened shard files", "count", len(shards))

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("merge: creating output file %s: %w", outputPath, err)
	}
	defer out.Close()
	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	openCount := len(shards)
	for h.Len() > 0 {
		top := heap.Pop(&h).(entry)
		if _, err := w.WriteString(top.line); err != nil {
			return linesWritten, fmt.Errorf("merge: writing output: %w", err)
		}
		linesWritten++

		nextLine, err := top.src.readLine()
		if err == io.EOF || nextLine == "" {
			top.src.f.Close()
			openCount--
		} else if err != nil {
			return linesWritten, fmt.Errorf("merge: reading from %s: %w", top.src.name, err)
		} else {
			heap.Push(&h, entry{key: firstField(nextLine), line: nextLine, src: top.src, seq: seq})
			seq++
		}

		if linesWritten%int64(progressEvery) == 0 {
			log.Infow("merge progress", "written", humanize.Comma(linesWritten), "heap_size", h.Len(), "shards_open", openCount)
		}
	}

	return linesWritten, w.Flush()
}

// ErrShardNotSorted is returned by AssertSorted when a shard's first-field
// keys are not in non-decreasing order.
var ErrShardNotSorted = fmt.Errorf("merge: shard is not sorted by its first field")

// AssertSorted is the cheap pre-pass SPEC_FULL.md's Open Question #2
// resolves to: it is always run before a shard is fed into the merge heap,
// and fails loudly unless the caller has opted into the alternative
// behaviour (sorting the offending shard in isolation) via SortInPlace.
func AssertSorted(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("merge: opening %s for sortedness check: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	prev := ""
	first := true
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			key := firstField(line)
			if !first && key < prev {
				return fmt.Errorf("%w: %s (key %q follows %q)", ErrShardNotSorted, path, key, prev)
			}
			prev = key
			first = false
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("merge: reading %s during sortedness check: %w", path, err)
		}
	}
	return nil
}

// SortInPlace loads a single shard fully into memory and rewrites it in
// sorted order. Only safe for one shard at a time — the merger's entire
// design rationale is that the full corpus does not fit in memory, but one
// shard, by construction, does.
func SortInPlace(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("merge: reading %s: %w", path, err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return firstField(lines[i]) < firstField(lines[j])
	})
	return os.WriteFile(path, []byte(strings.Join(lines, "")), 0644)
}
