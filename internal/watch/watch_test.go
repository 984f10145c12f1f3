package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, file string, debounce time.Duration, calls *atomic.Int32) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, file, debounce, quietLogger(), func(context.Context) { calls.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	})
	// Let the watcher register the directory.
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "changed_files.txt")
	var calls atomic.Int32
	startWatch(t, file, 50*time.Millisecond, &calls)

	if err := os.WriteFile(file, []byte("A\ta.rgz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() == 1 }, "trigger not called after write")
}

func TestWatch_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "changed_files.txt")
	var calls atomic.Int32
	startWatch(t, file, 300*time.Millisecond, &calls)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(file, []byte("A\ta.rgz\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() >= 1 }, "trigger not called")
	time.Sleep(500 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("trigger called %d times, want 1", n)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatch(t, filepath.Join(dir, "changed_files.txt"), 20*time.Millisecond, &calls)

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("trigger called %d times for unrelated file", n)
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "changed_files.txt"), 0, quietLogger(), func(context.Context) {})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
