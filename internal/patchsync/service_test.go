package patchsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/publish"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultOpts() Options {
	return Options{ManifestPath: testutil.ManifestPath, ReportPath: testutil.ReportPath}
}

func TestRun_UpdatesPublishesAndRecords(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n2 b.gpf\n", "M\tdata/a.rgz\nA\tdata/c.rgz\nM\tREADME.md\n")
	runner := &testutil.FakeRunner{}
	db := testutil.TestHistory(t)

	var events []string
	svc := NewService(store, defaultOpts(), quietLogger(),
		WithPublisher(publish.New(runner, publish.Options{}, quietLogger())),
		WithHistory(db),
		WithEventCallback(func(kind string, _ *Report) { events = append(events, kind) }),
	)

	rep, err := svc.Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := store.Read(testutil.ManifestPath)
	if string(got) != "//1 a.rgz\n2 b.gpf\n3 c.rgz\n4 a.rgz\n" {
		t.Errorf("manifest = %q", got)
	}
	if rep.PublishStatus != history.PublishDone {
		t.Errorf("publish status = %q", rep.PublishStatus)
	}
	if len(runner.Calls()) != 5 {
		t.Errorf("git calls = %d, want 5", len(runner.Calls()))
	}
	if rep.RunID == 0 {
		t.Fatal("run was not recorded")
	}
	run, err := db.Get(rep.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Appended != 2 || run.Deactivated != 1 || run.ManifestBefore == run.ManifestAfter {
		t.Errorf("recorded run = %+v", run)
	}
	if len(events) != 1 || events[0] != EventCompleted {
		t.Errorf("events = %v", events)
	}
}

func TestRun_PublishFailureIsNotFatal(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "D\ta.rgz\n")
	runner := &testutil.FakeRunner{FailOn: "push"}

	var events []string
	svc := NewService(store, defaultOpts(), quietLogger(),
		WithPublisher(publish.New(runner, publish.Options{}, quietLogger())),
		WithEventCallback(func(kind string, _ *Report) { events = append(events, kind) }),
	)

	rep, err := svc.Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
	if rep.PublishStatus != history.PublishFailed || rep.PublishError == "" {
		t.Errorf("report = %+v", rep)
	}
	got, _ := store.Read(testutil.ManifestPath)
	if string(got) != "//1 a.rgz\n" {
		t.Errorf("manifest = %q", got)
	}
	if len(events) != 1 || events[0] != EventPublishFailed {
		t.Errorf("events = %v", events)
	}
}

func TestRun_UnchangedManifestSkipsPublish(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "M\tdocs/readme.md\n")
	runner := &testutil.FakeRunner{}
	svc := NewService(store, defaultOpts(), quietLogger(),
		WithPublisher(publish.New(runner, publish.Options{}, quietLogger())))

	rep, err := svc.Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.PublishStatus != history.PublishSkipped {
		t.Errorf("publish status = %q", rep.PublishStatus)
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("git should not run, got %v", runner.Calls())
	}
}

func TestRun_NoPublisher(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "A\tb.rgz\n")
	rep, err := NewService(store, defaultOpts(), quietLogger()).Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.PublishStatus != history.PublishDisabled {
		t.Errorf("publish status = %q", rep.PublishStatus)
	}
}

func TestRun_MalformedReportIsFatal(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "A no-tab.rgz\n")
	db := testutil.TestHistory(t)
	var events []string
	svc := NewService(store, defaultOpts(), quietLogger(), WithHistory(db),
		WithEventCallback(func(kind string, _ *Report) { events = append(events, kind) }))

	rep, err := svc.Run(context.Background(), TriggerCLI)
	if !errors.Is(err, apperr.ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
	got, _ := store.Read(testutil.ManifestPath)
	if string(got) != "1 a.rgz\n" {
		t.Errorf("manifest touched on failure: %q", got)
	}
	run, gerr := db.Get(rep.RunID)
	if gerr != nil || run.Error == "" {
		t.Errorf("failed run not recorded: %+v, %v", run, gerr)
	}
	if len(events) != 1 || events[0] != EventFailed {
		t.Errorf("events = %v", events)
	}
}

func TestRun_MalformedManifestIsFatal(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1\ta.rgz\n", "A\tb.rgz\n")
	_, err := NewService(store, defaultOpts(), quietLogger()).Run(context.Background(), TriggerCLI)
	if !errors.Is(err, apperr.ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
}

func TestRun_MissingReportIsFatal(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "")
	opts := defaultOpts()
	opts.ReportPath = "missing.txt"
	if _, err := NewService(store, opts, quietLogger()).Run(context.Background(), TriggerCLI); err == nil {
		t.Error("expected error for missing change report")
	}
}

func TestRun_DiffRangeUsesGit(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "")
	runner := &testutil.FakeRunner{Output: map[string]string{"diff": "A\tpatch/z.gpf\n"}}
	opts := defaultOpts()
	opts.DiffRange = "HEAD~1..HEAD"

	rep, err := NewService(store, opts, quietLogger(), WithRunner(runner)).Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Changes.Added != 1 {
		t.Errorf("changes = %+v", rep.Changes)
	}
	got, _ := store.Read(testutil.ManifestPath)
	if string(got) != "1 a.rgz\n2 z.gpf\n" {
		t.Errorf("manifest = %q", got)
	}
}

func TestRun_SecondRunWithSameReportReappends(t *testing.T) {
	// The report is not consumed; a rerun applies it again.
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "M\ta.rgz\n")
	svc := NewService(store, defaultOpts(), quietLogger())
	for i := 0; i < 2; i++ {
		if _, err := svc.Run(context.Background(), TriggerCLI); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	got, _ := store.Read(testutil.ManifestPath)
	if string(got) != "//1 a.rgz\n//2 a.rgz\n3 a.rgz\n" {
		t.Errorf("manifest = %q", got)
	}
}

func TestTryRun_Busy(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "1 a.rgz\n", "")
	svc := NewService(store, defaultOpts(), quietLogger())
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if _, err := svc.TryRun(context.Background(), TriggerAPI); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

func TestManifest(t *testing.T) {
	_, store := testutil.TestWorkspace(t, "//1 a.rgz\n2 b.gpf\n", "")
	m, err := NewService(store, defaultOpts(), quietLogger()).Manifest(context.Background())
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(m.Entries()) != 1 || m.MaxID() != 2 {
		t.Errorf("entries = %+v", m.Entries())
	}
}
