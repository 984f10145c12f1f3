package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
)

type recordingRunner struct {
	calls  [][]string
	failOn string // first arg of the call that fails
}

func (r *recordingRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.calls = append(r.calls, args)
	if len(args) > 0 && args[0] == r.failOn {
		return "", fmt.Errorf("git %s: exit status 1: %w", args[0], apperr.ErrExternalCommand)
	}
	return "", nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublish_StepOrder(t *testing.T) {
	r := &recordingRunner{}
	p := New(r, Options{GlobalIdentity: true}, quietLogger())
	if err := p.Publish(context.Background(), "patch/patchlist/patch9.txt"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := [][]string{
		{"config", "--global", "user.name", "github-actions"},
		{"config", "--global", "user.email", "github-actions@github.com"},
		{"add", "patch/patchlist/patch9.txt"},
		{"commit", "-m", "Update patch file [skip ci]"},
		{"push"},
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestPublish_LocalIdentityAndRemote(t *testing.T) {
	r := &recordingRunner{}
	p := New(r, Options{UserName: "bot", UserEmail: "bot@example.org", Remote: "origin", Branch: "main"}, quietLogger())
	if err := p.Publish(context.Background(), "m.txt"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if diff := cmp.Diff([]string{"config", "user.name", "bot"}, r.calls[0]); diff != "" {
		t.Errorf("identity call (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"push", "origin", "main"}, r.calls[4]); diff != "" {
		t.Errorf("push call (-want +got):\n%s", diff)
	}
}

func TestPublish_StopsAtFirstFailure(t *testing.T) {
	r := &recordingRunner{failOn: "commit"}
	p := New(r, Options{}, quietLogger())
	err := p.Publish(context.Background(), "m.txt")
	if !errors.Is(err, apperr.ErrExternalCommand) {
		t.Fatalf("err = %v, want ErrExternalCommand", err)
	}
	if !strings.Contains(err.Error(), "commit") {
		t.Errorf("error should name the step: %v", err)
	}
	if len(r.calls) != 4 {
		t.Errorf("ran %d steps, want 4 (push skipped)", len(r.calls))
	}
}

func TestPublish_PlainRunnerErrorIsClassified(t *testing.T) {
	p := New(runnerFunc(func(args ...string) error { return errors.New("boom") }), Options{}, quietLogger())
	if err := p.Publish(context.Background(), "m.txt"); !errors.Is(err, apperr.ErrExternalCommand) {
		t.Errorf("err = %v, want ErrExternalCommand", err)
	}
}

func TestPublish_CancelledContext(t *testing.T) {
	r := &recordingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(r, Options{}, quietLogger()).Publish(ctx, "m.txt")
	if !errors.Is(err, context.Canceled) || !errors.Is(err, apperr.ErrExternalCommand) {
		t.Errorf("err = %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("no step should run, got %v", r.calls)
	}
}

func TestMessage(t *testing.T) {
	cases := map[string]string{
		"":                               DefaultMessage,
		"Sync patch list":                "Sync patch list [skip ci]",
		"Sync patch list [skip ci]":      "Sync patch list [skip ci]",
		"  Update patch file [skip ci] ": "Update patch file [skip ci]",
	}
	for in, want := range cases {
		if got := Message(in); got != want {
			t.Errorf("Message(%q) = %q, want %q", in, got, want)
		}
	}
}

type runnerFunc func(args ...string) error

func (f runnerFunc) Run(_ context.Context, _ string, args ...string) (string, error) {
	return "", f(args...)
}
