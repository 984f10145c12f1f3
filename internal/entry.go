// Package internal provides the application wiring and the command entry points.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/api"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/mcpserver"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/patchsync"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/publish"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/sse"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/storage"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/vcs"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/watch"
)

// runtime is the wired dependency graph shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	runs    history.Store // nil when disabled
	svc     *patchsync.Service
	out     io.Writer
	version string
	closers []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newRuntime(opts []Option) (*runtime, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logOut := app.logOutput
	if logOut == nil {
		logOut = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: cfg.App.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(logOut, handlerOpts)
	if cfg.App.LogFormat == LogFormatJSON {
		handler = slog.NewJSONHandler(logOut, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("workspace", cfg.Workspace.Root),
		slog.String("manifest_path", cfg.Manifest.Path),
		slog.String("report_path", cfg.Report.Path),
		slog.String("diff_range", cfg.Report.DiffRange),
		slog.Bool("publish", cfg.Publish.Enabled),
		slog.String("history_path", cfg.History.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, out: app.output, version: app.version}
	if rt.out == nil {
		rt.out = os.Stdout
	}
	if rt.version == "" {
		rt.version = "dev"
	}

	runner := app.runner
	if runner == nil {
		runner = vcs.NewExecRunner(cfg.Git.Bin, cfg.Git.Timeout)
	}

	svcOpts := []patchsync.ServiceOption{patchsync.WithRunner(runner)}
	if cfg.Publish.Enabled {
		pub := publish.New(runner, cfg.Publish.Options(store.Root()), logger)
		svcOpts = append(svcOpts, patchsync.WithPublisher(pub))
	}
	if cfg.History.Enabled() {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		rt.runs = db
		rt.closers = append(rt.closers, db.Close)
		svcOpts = append(svcOpts, patchsync.WithHistory(db))
	}

	rt.svc = patchsync.NewService(store, patchsync.Options{
		ManifestPath: cfg.Manifest.Path,
		ReportPath:   cfg.Report.Path,
		DiffRange:    cfg.Report.DiffRange,
		Suffixes:     cfg.Report.Suffixes,
	}, logger, svcOpts...)

	return rt, nil
}

// Sync runs the pipeline once. Format and I/O errors are returned; a failed
// publish is logged and does not produce an error.
func Sync(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.Run(ctx, patchsync.TriggerCLI)
	if err != nil {
		return err
	}
	rt.logger.Info("Sync finished",
		slog.Int("deactivated", len(rep.Summary.Deactivated)),
		slog.Int("appended", len(rep.Summary.Appended)),
		slog.String("publish", rep.PublishStatus))
	return nil
}

// Watch runs the pipeline each time the change report is rewritten, until
// ctx is cancelled or a signal arrives. Failed runs are logged and watching
// continues.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.watch(ctx)
}

func (rt *runtime) watch(ctx context.Context) error {
	if rt.cfg.Report.DiffRange != "" {
		return fmt.Errorf("watch: report.diff_range is set; there is no report file to watch")
	}
	reportPath, err := rt.store.Abs(rt.cfg.Report.Path)
	if err != nil {
		return err
	}
	return watch.Watch(ctx, reportPath, rt.cfg.Watch.Debounce, rt.logger, func(ctx context.Context) {
		// Run already logs and records failures.
		_, _ = rt.svc.Run(ctx, patchsync.TriggerWatch)
	})
}

// Serve starts the HTTP API. When watchReport is set the change report is
// watched as well, as in Watch.
func Serve(ctx context.Context, watchReport bool, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()
	rt.svc.SetEventCallback(func(kind string, rep *patchsync.Report) {
		broker.PublishRunEvent(kind, rep)
	})

	apiRouter := api.NewRouter(rt.svc, rt.runs, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !rt.store.Exists(cfg.Manifest.Path) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"manifest missing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if watchReport {
		g.Go(func() error {
			return rt.watch(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tools on stdin/stdout. Logs must not share
// stdout with the protocol, so callers should pass WithLogOutput(os.Stderr).
func ServeMCP(_ context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(rt.svc, rt.runs, rt.version).ServeStdio()
}

// History prints the most recent recorded runs.
func History(_ context.Context, limit int, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.runs == nil {
		return fmt.Errorf("history: no history.path configured")
	}
	runs, err := rt.runs.List(limit)
	if err != nil {
		return err
	}
	return printRuns(rt.out, runs)
}

func printRuns(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTRIGGER\tDEACTIVATED\tAPPENDED\tPUBLISH\tERROR")
	for _, r := range runs {
		errText := r.Error
		if errText == "" {
			errText = r.PublishError
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Trigger,
			r.Deactivated, r.Appended, r.PublishStatus, errText)
	}
	return tw.Flush()
}
