package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SyncState is the relationship between HEAD and its upstream.
type SyncState int

const (
	UpToDate SyncState = iota
	Ahead
	Behind
	Diverged
	NoUpstream
)

func (s SyncState) String() string {
	switch s {
	case UpToDate:
		return "up-to-date"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	case Diverged:
		return "diverged"
	case NoUpstream:
		return "no-upstream"
	default:
		return "unknown"
	}
}

// Classify derives the sync state from the local head, the upstream head and
// their merge base. An empty merge base with distinct heads is Diverged.
func Classify(local, upstream, base string) SyncState {
	switch {
	case upstream == "":
		return NoUpstream
	case local == upstream:
		return UpToDate
	case base != "" && base == local:
		return Behind
	case base != "" && base == upstream:
		return Ahead
	default:
		return Diverged
	}
}

// ClassifyRemoteSync fetches the remote and classifies HEAD against @{u}.
func (g *Guard) ClassifyRemoteSync(ctx context.Context) (SyncState, error) {
	g.UI.Info("Fetching %s...", g.remote())
	res, err := g.git(ctx, "fetch", g.remote())
	if err != nil {
		return Diverged, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !res.OK() {
		return Diverged, fmt.Errorf("%w: %s", ErrFetchFailed, res.Output())
	}

	local, err := g.gitOK(ctx, "rev-parse", "HEAD")
	if err != nil {
		return Diverged, err
	}

	up, err := g.git(ctx, "rev-parse", "@{u}")
	if err != nil {
		return Diverged, err
	}
	if !up.OK() {
		g.log().Debug(ctx, "no upstream", zap.String("stderr", up.Output()))
		return NoUpstream, nil
	}
	upstream := strings.TrimSpace(up.Stdout)
	if local == upstream {
		return UpToDate, nil
	}

	mb, err := g.git(ctx, "merge-base", "HEAD", "@{u}")
	if err != nil {
		return Diverged, err
	}
	base := ""
	if mb.OK() {
		base = strings.TrimSpace(mb.Stdout)
	}

	state := Classify(local, upstream, base)
	g.log().Debug(ctx, "remote sync classified",
		zap.String("local", local),
		zap.String("upstream", upstream),
		zap.String("base", base),
		zap.Stringer("state", state))
	return state, nil
}

// SyncRemote makes HEAD at least as new as its upstream. Behind branches are
// fast-forwarded; diverged branches are left alone and reported.
func (g *Guard) SyncRemote(ctx context.Context) error {
	state, err := g.ClassifyRemoteSync(ctx)
	if err != nil {
		return err
	}

	switch state {
	case UpToDate:
		g.UI.OK("Local branch is up to date with %s", g.remote())
		return nil
	case NoUpstream:
		g.UI.Warn("No upstream tracking branch. Skipping sync check.")
		return nil
	case Ahead:
		g.UI.OK("Local is ahead of %s (will push during publish)", g.remote())
		return nil
	case Behind:
		g.UI.Fix("Local is behind %s. Fast-forwarding...", g.remote())
		if _, err := g.gitOK(ctx, "merge", "--ff-only", "@{u}"); err != nil {
			return fmt.Errorf("%w: %w", ErrFastForwardFailed, err)
		}
		g.UI.OK("Fast-forwarded to %s", g.remote())
		return nil
	default:
		return ErrDiverged
	}
}

// CheckRemoteSync runs SyncRemote and reports a failure on the formatter.
func (g *Guard) CheckRemoteSync(ctx context.Context) bool {
	err := g.SyncRemote(ctx)
	if err == nil {
		return true
	}
	g.log().Warn(ctx, "remote sync failed", zap.Error(err))
	switch {
	case errors.Is(err, ErrDiverged):
		g.UI.Fail("Local and %s have diverged. Rebase or merge manually, then re-run.", g.remote())
	case errors.Is(err, ErrFetchFailed):
		g.UI.Fail("git fetch failed: %v", err)
	case errors.Is(err, ErrFastForwardFailed):
		g.UI.Fail("git merge --ff-only failed: %v", err)
	default:
		g.UI.Fail("Remote sync failed: %v", err)
	}
	return false
}
