package manifest

import (
	"slices"
	"strings"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/changes"
)

// Summary describes what Update did.
type Summary struct {
	Deactivated []Entry `json:"deactivated"`
	Appended    []Entry `json:"appended"`
	// Ignored lists deleted or modified names with no active entry.
	Ignored []string `json:"ignored,omitempty"`
	Changed bool     `json:"changed"`
}

// Result is the rewritten manifest.
type Result struct {
	Text    string
	Summary Summary
}

type entryKey struct {
	id   int
	name string
}

// Update applies change records to m and returns the new manifest text.
//
// For every deleted or modified filename the active occurrence with the
// highest identifier is commented out in place. Added filenames are then
// appended in report order, followed by each distinct modified filename in
// first-seen order, numbered from MaxID()+1 upwards. m is not modified.
func Update(m *Manifest, recs []changes.Record) Result {
	deleted := make(map[string]struct{})
	modified := make(map[string]struct{})
	var added, modifiedOrder []string

	for _, r := range recs {
		switch r.Status {
		case changes.Deleted:
			deleted[r.Name] = struct{}{}
		case changes.Added:
			added = append(added, r.Name)
		case changes.Modified:
			if _, seen := modified[r.Name]; !seen {
				modified[r.Name] = struct{}{}
				modifiedOrder = append(modifiedOrder, r.Name)
			}
		}
	}

	// Highest active identifier per stale filename.
	latest := make(map[string]Entry)
	for _, e := range m.entries {
		_, isDel := deleted[e.Name]
		_, isMod := modified[e.Name]
		if !isDel && !isMod {
			continue
		}
		if cur, ok := latest[e.Name]; !ok || e.ID > cur.ID {
			latest[e.Name] = e
		}
	}
	targets := make(map[entryKey]struct{}, len(latest))
	for _, e := range latest {
		targets[entryKey{e.ID, e.Name}] = struct{}{}
	}

	var sum Summary
	for _, name := range sortedKeys(deleted, modified) {
		if _, ok := latest[name]; !ok {
			sum.Ignored = append(sum.Ignored, name)
		}
	}

	var b strings.Builder
	for _, l := range m.lines {
		if l.kind == lineActive {
			e := m.entries[l.entry]
			if _, ok := targets[entryKey{e.ID, e.Name}]; ok {
				b.WriteString(CommentPrefix)
				b.WriteString(l.raw)
				sum.Deactivated = append(sum.Deactivated, e)
				continue
			}
		}
		b.WriteString(l.raw)
	}

	next := m.MaxID() + 1
	lineNo := len(m.lines)
	appendNames := append(added, modifiedOrder...)
	for i, name := range appendNames {
		if i == 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString(FormatEntry(next, name))
		if i < len(appendNames)-1 || m.trailingNewline {
			b.WriteString("\n")
		}
		sum.Appended = append(sum.Appended, Entry{ID: next, Name: name, Line: lineNo})
		next++
		lineNo++
	}

	text := b.String()
	sum.Changed = text != m.String()
	return Result{Text: text, Summary: sum}
}

// sortedKeys returns the union of the given sets' keys, ordered.
func sortedKeys(sets ...map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sets {
		for k := range s {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
