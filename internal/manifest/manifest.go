// Package manifest reads and rewrites the numbered patch list.
//
// Each active line is "identifier filename". Lines starting with "//" are
// deactivated entries kept for history; they are never parsed and never
// removed. Blank lines are carried through untouched.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
)

// CommentPrefix marks a deactivated line.
const CommentPrefix = "//"

// Entry is one active manifest line.
type Entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Line int    `json:"line"` // zero-based line index in the file
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineActive
)

type line struct {
	raw   string // including its line terminator, if any
	kind  lineKind
	entry int // index into Manifest.entries when kind == lineActive
}

// Manifest is the parsed projection of a manifest file. The raw lines are
// kept so that rewriting leaves everything it does not touch byte-identical.
type Manifest struct {
	lines           []line
	entries         []Entry
	trailingNewline bool
}

// Parse parses manifest content. A non-comment, non-blank line without a
// space, or with an identifier that is not a positive integer, fails with
// apperr.ErrFormat.
func Parse(data []byte) (*Manifest, error) {
	text := string(data)
	m := &Manifest{trailingNewline: text == "" || strings.HasSuffix(text, "\n")}

	raws := strings.SplitAfter(text, "\n")
	if n := len(raws); n > 0 && raws[n-1] == "" {
		raws = raws[:n-1]
	}

	for i, raw := range raws {
		content := strings.TrimSpace(raw)
		switch {
		case content == "":
			m.lines = append(m.lines, line{raw: raw, kind: lineBlank})
		case strings.HasPrefix(content, CommentPrefix):
			m.lines = append(m.lines, line{raw: raw, kind: lineComment})
		default:
			idStr, name, ok := strings.Cut(content, " ")
			if !ok {
				return nil, fmt.Errorf("manifest: line %d: missing space separator in %q: %w", i+1, content, apperr.ErrFormat)
			}
			id, err := strconv.Atoi(idStr)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("manifest: line %d: invalid identifier %q: %w", i+1, idStr, apperr.ErrFormat)
			}
			m.entries = append(m.entries, Entry{ID: id, Name: strings.TrimSpace(name), Line: i})
			m.lines = append(m.lines, line{raw: raw, kind: lineActive, entry: len(m.entries) - 1})
		}
	}
	return m, nil
}

// Entries returns the active entries in file order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of lines, active or not.
func (m *Manifest) Len() int { return len(m.lines) }

// MaxID returns the highest active identifier, or 0 for an empty manifest.
func (m *Manifest) MaxID() int {
	maxID := 0
	for _, e := range m.entries {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	return maxID
}

// Active returns the active entries whose filename is name, in file order.
func (m *Manifest) Active(name string) []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// String returns the manifest content exactly as parsed.
func (m *Manifest) String() string {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l.raw)
	}
	return b.String()
}

// FormatEntry renders an active manifest line without a terminator.
func FormatEntry(id int, name string) string {
	return strconv.Itoa(id) + " " + name
}
