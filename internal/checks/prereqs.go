package checks

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/runner"
)

const nodeDownloadURL = "https://nodejs.org/"

// Node verifies that Node.js is installed at the minimum major version.
func (c *Checks) Node(ctx context.Context) bool {
	res, err := c.run(ctx, "node", "--version")
	if err != nil || !res.OK() {
		c.UI.Fail("Node.js is not installed. Install from %s", nodeDownloadURL)
		c.logToolError(ctx, "node", res, err)
		return false
	}
	out := strings.TrimSpace(res.Stdout)
	v, err := semver.NewVersion(out)
	if err != nil {
		c.UI.Fail("Cannot parse Node.js version %q", out)
		return false
	}
	if want := c.Settings.MinNodeMajor; int(v.Major()) < want {
		c.UI.Fail("Node.js %s found, but >= %d is required. Install from %s", out, want, nodeDownloadURL)
		return false
	}
	c.UI.OK("Node.js %s", out)
	return true
}

// NPM verifies that npm is installed.
func (c *Checks) NPM(ctx context.Context) bool {
	return c.toolVersion(ctx, "npm", "npm is not installed.")
}

// Git verifies that git is installed.
func (c *Checks) Git(ctx context.Context) bool {
	return c.toolVersion(ctx, "git", "git is not installed.")
}

func (c *Checks) toolVersion(ctx context.Context, tool, missing string) bool {
	res, err := c.run(ctx, tool, "--version")
	if err != nil || !res.OK() {
		c.UI.Fail("%s", missing)
		c.logToolError(ctx, tool, res, err)
		return false
	}
	out := strings.TrimSpace(res.Stdout)
	if strings.HasPrefix(out, tool) {
		c.UI.OK("%s", out)
	} else {
		c.UI.OK("%s %s", tool, out)
	}
	return true
}

// EditorCLI looks for the VS Code `code` command. It never blocks: without
// it only the extension installs and the post-analysis install are skipped.
func (c *Checks) EditorCLI(ctx context.Context) bool {
	if _, err := c.Runner.LookPath("code"); err != nil {
		c.warn("VS Code CLI (code) is not on PATH")
		c.UI.Info("Open VS Code and run 'Shell Command: Install code command in PATH'")
		return true
	}
	c.UI.OK("VS Code CLI available")
	return true
}

// GitHubCLI verifies that gh is installed and authenticated. The auth check
// is bounded by the configured timeout; a timeout is a failure.
func (c *Checks) GitHubCLI(ctx context.Context) bool {
	if _, err := c.Runner.LookPath("gh"); err != nil {
		c.UI.Fail("GitHub CLI (gh) is not installed.")
		c.UI.Info("Install from https://cli.github.com/")
		return false
	}
	cmd := runner.Cmd("gh", "auth", "status").In(c.Dir).WithTimeout(c.Settings.AuthTimeout)
	res, err := c.Runner.Run(ctx, cmd)
	switch {
	case errors.Is(err, runner.ErrTimeout):
		c.UI.Fail("GitHub CLI auth check timed out.")
		c.log().Warn(ctx, "gh auth status timed out", zap.Duration("timeout", c.Settings.AuthTimeout))
		return false
	case err != nil:
		c.UI.Fail("GitHub CLI auth check failed: %v", err)
		return false
	case !res.OK():
		c.UI.Fail("GitHub CLI is not authenticated. Run: gh auth login")
		return false
	}
	c.UI.OK("GitHub CLI authenticated")
	return true
}

// MarketplacePAT verifies the publisher's marketplace token with vsce. Older
// vsce releases lack verify-pat; that case warns and passes.
func (c *Checks) MarketplacePAT(ctx context.Context) bool {
	publisher := c.Settings.Publisher
	if publisher == "" {
		c.UI.Fail("No publisher configured (set \"publisher\" in package.json)")
		return false
	}
	res, err := c.run(ctx, "npx", "@vscode/vsce", "verify-pat", publisher)
	if err != nil {
		c.UI.Fail("Cannot run vsce: %v", err)
		return false
	}
	if res.OK() {
		c.UI.OK("Marketplace PAT verified for publisher %q", publisher)
		return true
	}
	stderr := strings.ToLower(res.Stderr)
	if strings.Contains(stderr, "unknown command") || strings.Contains(stderr, "not a vsce command") {
		c.warn("vsce verify-pat is not supported by this vsce version")
		c.UI.Info("Publish may fail if the PAT is missing or expired")
		return true
	}
	c.UI.Fail("Marketplace PAT is invalid or expired for publisher %q", publisher)
	c.UI.Info("Run: npx @vscode/vsce login %s", publisher)
	return false
}

func (c *Checks) logToolError(ctx context.Context, tool string, res *runner.Result, err error) {
	fields := []zap.Field{zap.String("tool", tool)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if res != nil {
		fields = append(fields, zap.Int("exit_code", res.ExitCode))
	}
	c.log().Debug(ctx, "tool check failed", fields...)
}
