package internal

import (
	"io"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/vcs"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	runner    vcs.Runner
	logOutput io.Writer
	output    io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRunner replaces the git runner, which otherwise executes Config.Git.Bin.
func WithRunner(r vcs.Runner) Option {
	return func(a *application) {
		a.runner = r
	}
}

// WithLogOutput sends log lines to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithOutput sets where command output (such as the history table) is printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
