// Package patchsync runs the manifest synchronization pipeline:
// change report → manifest → update → write → publish.
package patchsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/changes"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/checksum"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/manifest"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/storage"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/vcs"
)

// Run triggers recorded in history.
const (
	TriggerCLI   = "cli"
	TriggerWatch = "watch"
	TriggerAPI   = "api"
	TriggerMCP   = "mcp"
)

// Event kinds passed to EventCallback.
const (
	EventCompleted     = "run.completed"
	EventFailed        = "run.failed"
	EventPublishFailed = "publish.failed"
)

// EventCallback is called after every run with the event kind and the run report.
type EventCallback func(kind string, rep *Report)

// Publisher persists the manifest externally.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// Options locates the inputs of a run.
type Options struct {
	ManifestPath string   // relative to the workspace root
	ReportPath   string   // relative to the workspace root
	DiffRange    string   // when set, the report comes from git diff instead of ReportPath
	Suffixes     []string // asset suffixes kept from the report
}

// Report describes a finished run.
type Report struct {
	RunID          int64            `json:"run_id,omitempty"`
	Trigger        string           `json:"trigger"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	ReportChecksum string           `json:"report_checksum,omitempty"`
	ManifestBefore string           `json:"manifest_before,omitempty"`
	ManifestAfter  string           `json:"manifest_after,omitempty"`
	Changes        changes.Counts   `json:"changes"`
	Summary        manifest.Summary `json:"summary"`
	PublishStatus  string           `json:"publish_status,omitempty"`
	PublishError   string           `json:"publish_error,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Service coordinates storage, the manifest updater, the publisher and the run ledger.
type Service struct {
	store     storage.Provider
	runner    vcs.Runner
	publisher Publisher     // nil disables publishing
	history   history.Store // nil disables recording
	opts      Options
	logger    *slog.Logger
	onEvent   EventCallback

	mu sync.Mutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithPublisher enables publishing after a changed manifest is written.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithHistory records every run in h.
func WithHistory(h history.Store) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithRunner sets the git runner used for diff-range reports.
func WithRunner(r vcs.Runner) ServiceOption {
	return func(s *Service) { s.runner = r }
}

// WithEventCallback registers cb for run events.
func WithEventCallback(cb EventCallback) ServiceOption {
	return func(s *Service) { s.onEvent = cb }
}

// NewService creates a sync service over store.
func NewService(store storage.Provider, opts Options, logger *slog.Logger, options ...ServiceOption) *Service {
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = changes.DefaultSuffixes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, opts: opts, logger: logger}
	for _, o := range options {
		o(s)
	}
	return s
}

// SetEventCallback replaces the run event callback. Call before the first run.
func (s *Service) SetEventCallback(cb EventCallback) { s.onEvent = cb }

// Options returns the paths the service operates on.
func (s *Service) Options() Options { return s.opts }

// Run performs one sync, waiting for any run already in progress.
func (s *Service) Run(ctx context.Context, trigger string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, trigger)
}

// TryRun performs one sync, or returns apperr.ErrBusy if another run holds the lock.
func (s *Service) TryRun(ctx context.Context, trigger string) (*Report, error) {
	if !s.mu.TryLock() {
		return nil, apperr.ErrBusy
	}
	defer s.mu.Unlock()
	return s.run(ctx, trigger)
}

// Manifest reads and parses the current manifest.
func (s *Service) Manifest(_ context.Context) (*manifest.Manifest, error) {
	data, err := s.store.Read(s.opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

func (s *Service) run(ctx context.Context, trigger string) (*Report, error) {
	rep := &Report{Trigger: trigger, StartedAt: time.Now()}
	log := s.logger.With(slog.String("trigger", trigger))

	err := s.apply(ctx, rep, log)
	rep.FinishedAt = time.Now()
	if err != nil {
		rep.Error = err.Error()
		log.Error("sync failed", slog.String("error", err.Error()))
	}
	s.record(rep, log)

	switch {
	case err != nil:
		s.emit(EventFailed, rep)
		return rep, err
	case rep.PublishStatus == history.PublishFailed:
		s.emit(EventPublishFailed, rep)
	default:
		s.emit(EventCompleted, rep)
	}
	return rep, nil
}

func (s *Service) apply(ctx context.Context, rep *Report, log *slog.Logger) error {
	recs, err := s.readChanges(ctx, rep)
	if err != nil {
		return err
	}
	rep.Changes = changes.Count(recs)
	log.Info("change report read",
		slog.Int("added", rep.Changes.Added),
		slog.Int("modified", rep.Changes.Modified),
		slog.Int("deleted", rep.Changes.Deleted),
		slog.Int("ignored", rep.Changes.Ignored))

	data, err := s.store.Read(s.opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("patchsync: read manifest: %w", err)
	}
	rep.ManifestBefore = checksum.Sum(data)
	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}

	res := manifest.Update(m, recs)
	rep.Summary = res.Summary
	rep.ManifestAfter = rep.ManifestBefore

	for _, name := range res.Summary.Ignored {
		log.Debug("no active entry to deactivate", slog.String("name", name))
	}

	if !res.Summary.Changed {
		log.Info("manifest unchanged", slog.String("path", s.opts.ManifestPath))
		rep.PublishStatus = s.skippedStatus()
		return nil
	}

	if err := s.store.Write(s.opts.ManifestPath, []byte(res.Text)); err != nil {
		return fmt.Errorf("patchsync: write manifest: %w", err)
	}
	rep.ManifestAfter = checksum.Sum([]byte(res.Text))
	log.Info("manifest updated",
		slog.String("path", s.opts.ManifestPath),
		slog.Int("deactivated", len(res.Summary.Deactivated)),
		slog.Int("appended", len(res.Summary.Appended)),
		slog.String("checksum", rep.ManifestAfter[:12]))

	if s.publisher == nil {
		rep.PublishStatus = history.PublishDisabled
		return nil
	}
	// Publish failures are reported, never propagated.
	if err := s.publisher.Publish(ctx, s.opts.ManifestPath); err != nil {
		rep.PublishStatus = history.PublishFailed
		rep.PublishError = err.Error()
		log.Error("error committing and pushing manifest", slog.String("error", err.Error()))
		return nil
	}
	rep.PublishStatus = history.PublishDone
	return nil
}

func (s *Service) skippedStatus() string {
	if s.publisher == nil {
		return history.PublishDisabled
	}
	return history.PublishSkipped
}

func (s *Service) readChanges(ctx context.Context, rep *Report) ([]changes.Record, error) {
	if s.opts.DiffRange != "" {
		if s.runner == nil {
			return nil, fmt.Errorf("patchsync: diff range %q set without a git runner", s.opts.DiffRange)
		}
		root, err := s.store.Abs("")
		if err != nil {
			return nil, err
		}
		recs, raw, err := changes.FromGit(ctx, s.runner, root, s.opts.DiffRange, s.opts.Suffixes)
		if err != nil {
			return nil, err
		}
		rep.ReportChecksum = checksum.Sum(raw)
		return recs, nil
	}

	data, err := s.store.Read(s.opts.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("patchsync: read change report: %w", err)
	}
	rep.ReportChecksum = checksum.Sum(data)
	return changes.ParseBytes(data, s.opts.Suffixes)
}

func (s *Service) record(rep *Report, log *slog.Logger) {
	if s.history == nil {
		return
	}
	id, err := s.history.Record(history.Run{
		Trigger:        rep.Trigger,
		StartedAt:      rep.StartedAt,
		FinishedAt:     rep.FinishedAt,
		ReportChecksum: rep.ReportChecksum,
		ManifestBefore: rep.ManifestBefore,
		ManifestAfter:  rep.ManifestAfter,
		Added:          rep.Changes.Added,
		Modified:       rep.Changes.Modified,
		Deleted:        rep.Changes.Deleted,
		Deactivated:    len(rep.Summary.Deactivated),
		Appended:       len(rep.Summary.Appended),
		Changed:        rep.Summary.Changed,
		PublishStatus:  rep.PublishStatus,
		PublishError:   rep.PublishError,
		Error:          rep.Error,
	})
	if err != nil {
		log.Warn("history: record run failed", slog.String("error", err.Error()))
		return
	}
	rep.RunID = id
}

func (s *Service) emit(kind string, rep *Report) {
	if s.onEvent != nil {
		s.onEvent(kind, rep)
	}
}
