package git

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// TagExists reports whether tag exists locally. The answer is never cached:
// the tag namespace is re-read on every call.
func (g *Guard) TagExists(ctx context.Context, tag string) (bool, error) {
	out, err := g.gitOK(ctx, "tag", "-l", tag)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == tag {
			return true, nil
		}
	}
	return false, nil
}

// CommitAll stages everything and commits it with msg. It reports false
// without error when there was nothing to commit.
func (g *Guard) CommitAll(ctx context.Context, msg string) (bool, error) {
	if _, err := g.gitOK(ctx, "add", "-A"); err != nil {
		return false, err
	}
	paths, err := g.ChangedPaths(ctx)
	if err != nil {
		return false, err
	}
	if len(paths) == 0 {
		return false, nil
	}
	if _, err := g.gitOK(ctx, "commit", "-m", msg); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentBranch returns the checked-out branch. It falls back to reading
// .git/HEAD and finally to "main".
func (g *Guard) CurrentBranch(ctx context.Context) string {
	out, err := g.gitOK(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil && out != "" && out != "HEAD" {
		return out
	}
	branch, derr := DetectBranch(g.Dir)
	if derr == nil && branch != Detached {
		return branch
	}
	g.log().Debug(ctx, "branch detection fell back to main",
		zap.NamedError("rev_parse", err),
		zap.NamedError("head_file", derr))
	return "main"
}

// Push pushes ref to the remote.
func (g *Guard) Push(ctx context.Context, ref string) error {
	_, err := g.gitOK(ctx, "push", g.remote(), ref)
	return err
}

// CreateTag creates an annotated tag at HEAD.
func (g *Guard) CreateTag(ctx context.Context, tag, msg string) error {
	if tag == "" {
		return errors.New("tag name is empty")
	}
	_, err := g.gitOK(ctx, "tag", "-a", tag, "-m", msg)
	return err
}
