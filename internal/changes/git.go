package changes

import (
	"context"
	"fmt"
	"strings"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/vcs"
)

// FromGit builds a change report by running `git diff --name-status` over
// rng (for example "HEAD~1..HEAD") in dir. It returns the parsed records and
// the raw report text.
func FromGit(ctx context.Context, runner vcs.Runner, dir, rng string, suffixes []string) ([]Record, []byte, error) {
	if strings.TrimSpace(rng) == "" {
		return nil, nil, fmt.Errorf("changes: empty diff range")
	}
	out, err := runner.Run(ctx, dir, "diff", "--name-status", rng)
	if err != nil {
		return nil, nil, fmt.Errorf("changes: git diff: %w", err)
	}
	raw := []byte(out)
	recs, err := ParseBytes(raw, suffixes)
	if err != nil {
		return nil, nil, err
	}
	return recs, raw, nil
}
