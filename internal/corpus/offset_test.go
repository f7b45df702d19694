package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeOffsetFile(t *testing.T, entries [][2]int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.offset")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating offset file: %v", err)
	}
	defer f.Close()
	for _, e := range entries {
		fmt.Fprintf(f, "%010d\n%010d\n", e[0], e[1])
	}
	return path
}

func TestOffsetTableLookup(t *testing.T) {
	entries := [][2]int64{{0, 100}, {100, 250}, {250, 400}}
	path := writeOffsetFile(t, entries)

	tbl, err := OpenOffsetTable(path)
	if err != nil {
		t.Fatalf("OpenOffsetTable: %v", err)
	}
	defer tbl.Close()

	for i, want := range entries {
		start, end, err := tbl.Lookup(i)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", i, err)
		}
		if start != want[0] || end != want[1] {
			t.Errorf("Lookup(%d) = (%d,%d), want (%d,%d)", i, start, end, want[0], want[1])
		}
	}
}

func TestOffsetTableLookupMany(t *testing.T) {
	entries := [][2]int64{{0, 10}, {10, 20}, {20, 30}, {30, 40}}
	path := writeOffsetFile(t, entries)

	tbl, err := OpenOffsetTable(path)
	if err != nil {
		t.Fatalf("OpenOffsetTable: %v", err)
	}
	defer tbl.Close()

	got, err := tbl.LookupMany([]int{3, 0, 2})
	if err != nil {
		t.Fatalf("LookupMany: %v", err)
	}
	want := []Range{{30, 40}, {0, 10}, {20, 30}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LookupMany()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestOffsetTableLookupOutOfRange(t *testing.T) {
	path := writeOffsetFile(t, [][2]int64{{0, 10}})
	tbl, err := OpenOffsetTable(path)
	if err != nil {
		t.Fatalf("OpenOffsetTable: %v", err)
	}
	defer tbl.Close()

	if _, _, err := tbl.Lookup(5); err == nil {
		t.Error("Lookup(5): expected error for out-of-range record, got nil")
	}
}
