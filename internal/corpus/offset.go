package corpus

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// fieldWidth is the width in bytes of a single 10-digit-plus-newline offset
// value. Two fields (start, end) make up one record's 22-byte entry.
const fieldWidth = 11

// OffsetTable reads the fixed-width (start, end) byte-range entries of a
// ClueWeb22 ".offset" file. One entry per record, addressed by record
// sequence number.
type OffsetTable struct {
	f *os.File
}

// OpenOffsetTable opens an offset file for random-access lookups. The
// caller must Close it.
func OpenOffsetTable(path string) (*OffsetTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: opening offset file %s: %w", path, err)
	}
	return &OffsetTable{f: f}, nil
}

func (t *OffsetTable) Close() error {
	return t.f.Close()
}

// Lookup returns the [start, end) byte range of the recSeq'th record.
func (t *OffsetTable) Lookup(recSeq int) (start, end int64, err error) {
	buf := make([]byte, fieldWidth*2)
	n, err := t.f.ReadAt(buf, int64(recSeq)*fieldWidth*2)
	if err != nil && n < len(buf) {
		return 0, 0, fmt.Errorf("corpus: reading offset entry %d: got %d bytes, want %d: %w", recSeq, n, len(buf), err)
	}

	startVal, err := strconv.ParseInt(string(buf[:fieldWidth-1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("corpus: parsing start offset for record %d: %w", recSeq, err)
	}
	endVal, err := strconv.ParseInt(string(buf[fieldWidth:fieldWidth*2-1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("corpus: parsing end offset for record %d: %w", recSeq, err)
	}
	return startVal, endVal, nil
}

// Range is a single record's byte range within its container.
type Range struct {
	Start, End int64
}

// LookupMany resolves offsets for many record sequence numbers. It sorts a
// copy of recSeqs ascending before reading, to turn scattered ReadAt calls
// into mostly-forward seeks, then returns results in the caller's original
// order.
func (t *OffsetTable) LookupMany(recSeqs []int) ([]Range, error) {
	order := make([]int, len(recSeqs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return recSeqs[order[i]] < recSeqs[order[j]]
	})

	results := make([]Range, len(recSeqs))
	for _, idx := range order {
		start, end, err := t.Lookup(recSeqs[idx])
		if err != nil {
			return nil, err
		}
		results[idx] = Range{Start: start, End: end}
	}
	return results, nil
}
