// Package vcs runs the external version-control binary on behalf of the
// publisher and the change-report reader.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
)

// Runner executes a git command in dir and returns its stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs the configured git binary as a child process.
type ExecRunner struct {
	GitBin  string
	Timeout time.Duration // zero means no limit beyond ctx
}

// NewExecRunner returns an ExecRunner, defaulting the binary to "git".
func NewExecRunner(gitBin string, timeout time.Duration) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return &ExecRunner{GitBin: gitBin, Timeout: timeout}
}

// Run executes GitBin with args. Any failure, including a missing binary,
// is reported as apperr.ErrExternalCommand.
func (e *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.GitBin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = strings.TrimSpace(out.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s: %w", summarize(args), redact(msg), apperr.ErrExternalCommand)
	}
	return out.String(), nil
}

var (
	safeWordRe   = regexp.MustCompile(`^[a-z][a-z-]*$`)
	urlCredRe    = regexp.MustCompile(`https?://[^\s@]+@`)
	tokenParamRe = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

// summarize keeps at most the first two subcommand words so paths and URLs
// never reach the logs.
func summarize(args []string) string {
	if len(args) == 0 {
		return "<no-args>"
	}
	safe := make([]string, 0, 2)
	for _, a := range args {
		if !safeWordRe.MatchString(a) {
			break
		}
		safe = append(safe, a)
		if len(safe) == 2 {
			break
		}
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}

func redact(s string) string {
	s = urlCredRe.ReplaceAllString(s, "https://<redacted>@")
	return tokenParamRe.ReplaceAllString(s, "$1=<redacted>")
}
