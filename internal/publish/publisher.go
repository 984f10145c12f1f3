// Package publish commits and pushes the updated manifest through git.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/vcs"
)

// SkipCI is appended to every commit message so the push does not
// retrigger the automation that produced it.
const SkipCI = "[skip ci]"

// Defaults used by the CI workflow.
const (
	DefaultUserName  = "github-actions"
	DefaultUserEmail = "github-actions@github.com"
	DefaultMessage   = "Update patch file " + SkipCI
)

// Options configures the publisher.
type Options struct {
	Dir            string // working tree; empty means the process cwd
	UserName       string
	UserEmail      string
	GlobalIdentity bool // write the identity with --global
	Message        string
	Remote         string // optional, push target
	Branch         string // optional, only used with Remote
}

// Step is one git invocation of a publish.
type Step struct {
	Name string
	Args []string
}

// Publisher stages, commits and pushes one file.
type Publisher struct {
	runner vcs.Runner
	opts   Options
	logger *slog.Logger
}

// New creates a Publisher. Empty identity and message fields take the defaults.
func New(runner vcs.Runner, opts Options, logger *slog.Logger) *Publisher {
	if opts.UserName == "" {
		opts.UserName = DefaultUserName
	}
	if opts.UserEmail == "" {
		opts.UserEmail = DefaultUserEmail
	}
	opts.Message = Message(opts.Message)
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{runner: runner, opts: opts, logger: logger}
}

// Message returns msg with the SkipCI marker guaranteed at its end.
func Message(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return DefaultMessage
	}
	if strings.HasSuffix(msg, SkipCI) {
		return msg
	}
	return msg + " " + SkipCI
}

// Steps returns the git invocations Publish runs for path, in order.
func (p *Publisher) Steps(path string) []Step {
	config := []string{"config"}
	if p.opts.GlobalIdentity {
		config = append(config, "--global")
	}
	push := []string{"push"}
	if p.opts.Remote != "" {
		push = append(push, p.opts.Remote)
		if p.opts.Branch != "" {
			push = append(push, p.opts.Branch)
		}
	}
	return []Step{
		{Name: "configure name", Args: append(append([]string{}, config...), "user.name", p.opts.UserName)},
		{Name: "configure email", Args: append(append([]string{}, config...), "user.email", p.opts.UserEmail)},
		{Name: "stage", Args: []string{"add", path}},
		{Name: "commit", Args: []string{"commit", "-m", p.opts.Message}},
		{Name: "push", Args: push},
	}
}

// Publish runs Steps in order and stops at the first failure. The returned
// error always wraps apperr.ErrExternalCommand; earlier steps are not undone.
func (p *Publisher) Publish(ctx context.Context, path string) error {
	for _, st := range p.Steps(path) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("publish: %s: %w: %w", st.Name, apperr.ErrExternalCommand, err)
		}
		p.logger.Debug("publish: running step", slog.String("step", st.Name))
		if _, err := p.runner.Run(ctx, p.opts.Dir, st.Args...); err != nil {
			if errors.Is(err, apperr.ErrExternalCommand) {
				return fmt.Errorf("publish: %s: %w", st.Name, err)
			}
			return fmt.Errorf("publish: %s: %w: %w", st.Name, apperr.ErrExternalCommand, err)
		}
	}
	p.logger.Info("publish: committed and pushed", slog.String("path", path))
	return nil
}
