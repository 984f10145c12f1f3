// Package testutil provides shared test helpers for workspaces, run ledgers and git.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/storage"
)

// Default workspace-relative paths used by test workspaces.
const (
	ManifestPath = "patch/patchlist/patch9.txt"
	ReportPath   = "changed_files.txt"
)

// TestHistory creates a temporary run ledger that is automatically cleaned up.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "patchsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace holding the given manifest and
// change report at ManifestPath and ReportPath.
func TestWorkspace(t *testing.T, manifest, report string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ManifestPath, []byte(manifest)); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ReportPath, []byte(report)); err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// FakeRunner records git invocations and fails the first call whose
// subcommand equals FailOn.
type FakeRunner struct {
	FailOn string
	Output map[string]string // stdout by subcommand

	mu    sync.Mutex
	calls [][]string
}

// Run implements vcs.Runner.
func (f *FakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), args...))
	if len(args) == 0 {
		return "", nil
	}
	if args[0] == f.FailOn {
		return "", apperr.ErrExternalCommand
	}
	return f.Output[args[0]], nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}
