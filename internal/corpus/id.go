// Package corpus decodes ClueWeb22-IDs into filesystem paths and reads the
// fixed-width offset tables that index each container's records.
package corpus

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind selects which half of the corpus a document lives in: the plain-text
// JSON-Lines containers ("txt") or the raw WARC containers ("html"). The
// module never parses the body of either — only locates and slices bytes.
type Kind string

const (
	KindText Kind = "txt"
	KindHTML Kind = "html"
)

// DocumentID is a parsed ClueWeb22-ID: clueweb22-<subdir>-<fileseq>-<recseq>.
type DocumentID struct {
	Raw       string // original string, prefix included if present
	Lang      string // e.g. "en"
	StreamID  string // e.g. "en00"
	Subdir    string // e.g. "en0003"
	FileSeq   string // e.g. "18" — kept as a string, it is zero-padded
	RecordSeq int    // e.g. 42
}

// BaseFilename returns "<subdir>-<fileseq>", the container's name with no
// extension, matching id_to_path_components' fourth return value.
func (d DocumentID) BaseFilename() string {
	return d.Subdir + "-" + d.FileSeq
}

const idPrefix = "clueweb22-"

// ParseID decodes a ClueWeb22-ID, with or without the "clueweb22-" prefix.
func ParseID(id string) (DocumentID, error) {
	raw := id
	trimmed := strings.TrimPrefix(id, idPrefix)

	parts := strings.Split(trimmed, "-")
	if len(parts) != 3 {
		return DocumentID{}, fmt.Errorf("corpus: malformed ClueWeb22-ID %q: expected 3 dash-separated fields, got %d", id, len(parts))
	}
	subdir, fileSeq, recSeqStr := parts[0], parts[1], parts[2]

	digitIdx := -1
	for i, c := range subdir {
		if c >= '0' && c <= '9' {
			digitIdx = i
			break
		}
	}
	if digitIdx < 0 || digitIdx+2 > len(subdir) {
		return DocumentID{}, fmt.Errorf("corpus: malformed subdirectory %q in ID %q: no language/stream digits found", subdir, id)
	}
	lang := subdir[:digitIdx]
	streamID := subdir[:digitIdx+2]

	recSeq, err := strconv.Atoi(recSeqStr)
	if err != nil {
		return DocumentID{}, fmt.Errorf("corpus: malformed record sequence %q in ID %q: %w", recSeqStr, id, err)
	}

	return DocumentID{
		Raw:       raw,
		Lang:      lang,
		StreamID:  streamID,
		Subdir:    subdir,
		FileSeq:   fileSeq,
		RecordSeq: recSeq,
	}, nil
}

// DataFilePath returns the path to the container file and its companion
// offset file for the given ID under root, for the given corpus Kind.
func DataFilePath(root string, id DocumentID, kind Kind) (dataPath, offsetPath string) {
	ext := "json.gz"
	if kind == KindHTML {
		ext = "warc.gz"
	}
	dataPath = filepath.Join(root, string(kind), id.Lang, id.StreamID, id.Subdir, id.BaseFilename()+"."+ext)

	// txt offsets: foo.json.gz -> foo.offset
	// html offsets: foo.warc.gz -> foo.warc.offset (only the .gz is stripped)
	if kind == KindText {
		offsetPath = strings.TrimSuffix(dataPath, "."+ext) + ".offset"
	} else {
		offsetPath = strings.TrimSuffix(dataPath, ".gz") + ".offset"
	}
	return dataPath, offsetPath
}
