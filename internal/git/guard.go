// Package git inspects and mutates the release repository.
//
// All repository state is read through the git CLI via runner.Runner, so the
// guard sees exactly what the operator's git sees (credentials, hooks,
// includeIf config). go-git is only used for read-only remote inspection.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
)

var (
	// ErrCommandFailed indicates a git command exited non-zero.
	ErrCommandFailed = errors.New("git command failed")

	// ErrFetchFailed indicates the remote could not be fetched.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrDiverged indicates local and upstream both have commits the other lacks.
	ErrDiverged = errors.New("local and upstream have diverged")

	// ErrFastForwardFailed indicates a behind branch could not be fast-forwarded.
	ErrFastForwardFailed = errors.New("fast-forward failed")
)

// maxListedPaths bounds how many dirty paths are shown before asking.
const maxListedPaths = 10

// Guard checks and updates the working tree and its remote.
type Guard struct {
	Runner  runner.Runner
	Dir     string
	Remote  string
	UI      ui.Formatter
	Confirm ui.Confirmer
	Logger  *logging.Logger
}

func (g *Guard) log() *logging.Logger {
	if g.Logger == nil {
		return logging.Nop()
	}
	return g.Logger
}

func (g *Guard) remote() string {
	if g.Remote == "" {
		return "origin"
	}
	return g.Remote
}

// git runs a git subcommand in the repository.
func (g *Guard) git(ctx context.Context, args ...string) (*runner.Result, error) {
	argv := append([]string{"git"}, args...)
	res, err := g.Runner.Run(ctx, runner.Cmd(argv...).In(g.Dir))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// gitOK runs a git subcommand and converts a non-zero exit into an error.
func (g *Guard) gitOK(ctx context.Context, args ...string) (string, error) {
	res, err := g.git(ctx, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%w: git %s: %s", ErrCommandFailed, strings.Join(args, " "), res.Output())
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ChangedPaths lists the working tree changes in porcelain format, one entry
// per path, status columns included.
func (g *Guard) ChangedPaths(ctx context.Context) ([]string, error) {
	res, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: git status: %s", ErrCommandFailed, res.Output())
	}
	var paths []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// CheckWorkingTree passes on a clean tree. A dirty tree is listed and the
// operator decides whether to continue.
func (g *Guard) CheckWorkingTree(ctx context.Context) bool {
	paths, err := g.ChangedPaths(ctx)
	if err != nil {
		g.log().Warn(ctx, "git status failed", zap.Error(err))
		g.UI.Fail("Could not check git status.")
		return false
	}
	if len(paths) == 0 {
		g.UI.OK("Working tree is clean")
		return true
	}

	g.UI.Warn("%d uncommitted change(s):", len(paths))
	shown := paths
	if len(shown) > maxListedPaths {
		shown = shown[:maxListedPaths]
	}
	listing := strings.Join(shown, "\n")
	if extra := len(paths) - len(shown); extra > 0 {
		listing += fmt.Sprintf("\n... and %d more", extra)
	}
	g.UI.Detail(listing)

	return g.Confirm.Ask("Continue with dirty working tree?", false)
}
