// Package changes reads the version-control change report that drives a sync run.
//
// A report holds one record per line in the form "status<TAB>path", the layout
// produced by `git diff --name-status`. Only paths ending in one of the
// configured suffixes are kept, reduced to their base name.
package changes

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
)

// Status is the single-letter change code from the report.
type Status string

// Recognised statuses. Anything else (renames, copies, type changes) is
// passed through by the reader and ignored by the manifest updater.
const (
	Added    Status = "A"
	Modified Status = "M"
	Deleted  Status = "D"
)

// DefaultSuffixes are the patchable asset extensions.
var DefaultSuffixes = []string{".rgz", ".gpf"}

// Record is one filtered line of the change report.
type Record struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Known reports whether s is one of Added, Modified or Deleted.
func (s Status) Known() bool {
	switch s {
	case Added, Modified, Deleted:
		return true
	}
	return false
}

// Parse reads a change report from r. Blank lines are skipped; a non-blank
// line without a tab fails with apperr.ErrFormat. Repeated paths produce
// repeated records.
func Parse(r io.Reader, suffixes []string) ([]Record, error) {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		status, p, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("changes: line %d: missing tab separator in %q: %w", lineNo, line, apperr.ErrFormat)
		}
		if !hasSuffix(p, suffixes) {
			continue
		}
		out = append(out, Record{
			Name:   path.Base(strings.ReplaceAll(p, "\\", "/")),
			Status: Status(strings.TrimSpace(status)),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("changes: scan: %w", err)
	}
	return out, nil
}

// ParseBytes is Parse over an in-memory report.
func ParseBytes(data []byte, suffixes []string) ([]Record, error) {
	return Parse(bytes.NewReader(data), suffixes)
}

func hasSuffix(p string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

// Counts tallies records per recognised status.
type Counts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Ignored  int `json:"ignored"`
}

// Count returns per-status totals for recs.
func Count(recs []Record) Counts {
	var c Counts
	for _, r := range recs {
		switch r.Status {
		case Added:
			c.Added++
		case Modified:
			c.Modified++
		case Deleted:
			c.Deleted++
		default:
			c.Ignored++
		}
	}
	return c
}
