package checks

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// GlobalPackages installs the configured global npm packages that are
// missing. Any failed install fails the step.
func (c *Checks) GlobalPackages(ctx context.Context) bool {
	installed := c.installedGlobals(ctx)

	ok := true
	for _, pkg := range c.Settings.GlobalPackages {
		if installed[pkg] {
			c.UI.OK("Global npm package: %s", pkg)
			continue
		}
		c.UI.Fix("Installing global npm package: %s", pkg)
		res, err := c.run(ctx, "npm", "install", "-g", pkg)
		if err != nil || !res.OK() {
			c.UI.Fail("Failed to install %s", pkg)
			c.showOutput(res)
			c.logToolError(ctx, "npm install -g "+pkg, res, err)
			ok = false
			continue
		}
		c.UI.OK("Installed: %s", pkg)
	}
	return ok
}

// installedGlobals parses `npm list -g --json`. npm exits non-zero when the
// global tree has peer problems but still prints the listing, so the output
// is used whenever it is valid JSON.
func (c *Checks) installedGlobals(ctx context.Context) map[string]bool {
	installed := make(map[string]bool)
	res, err := c.run(ctx, "npm", "list", "-g", "--depth=0", "--json")
	if err != nil {
		c.log().Debug(ctx, "npm list -g failed", zap.Error(err))
		return installed
	}
	if !gjson.Valid(res.Stdout) {
		c.log().Debug(ctx, "npm list -g returned invalid json", zap.Int("exit_code", res.ExitCode))
		return installed
	}
	gjson.Get(res.Stdout, "dependencies").ForEach(func(key, _ gjson.Result) bool {
		installed[key.String()] = true
		return true
	})
	return installed
}

// EditorExtensions installs the configured editor extensions that are
// missing. Without the code CLI the step warns and passes.
func (c *Checks) EditorExtensions(ctx context.Context) bool {
	if _, err := c.Runner.LookPath("code"); err != nil {
		c.warn("VS Code CLI not available; skipping extension checks")
		return true
	}
	res, err := c.run(ctx, "code", "--list-extensions")
	if err != nil || !res.OK() {
		c.warn("Could not list VS Code extensions")
		c.logToolError(ctx, "code --list-extensions", res, err)
		return true
	}

	installed := make(map[string]bool)
	for _, ext := range strings.Split(res.Stdout, "\n") {
		if ext = strings.TrimSpace(ext); ext != "" {
			installed[strings.ToLower(ext)] = true
		}
	}

	ok := true
	for _, ext := range c.Settings.EditorExtensions {
		if installed[strings.ToLower(ext)] {
			c.UI.OK("Extension: %s", ext)
			continue
		}
		c.UI.Fix("Installing VS Code extension: %s", ext)
		res, err := c.run(ctx, "code", "--install-extension", ext)
		if err != nil || !res.OK() {
			c.UI.Fail("Failed to install extension %s", ext)
			c.showOutput(res)
			ok = false
			continue
		}
		c.UI.OK("Installed extension: %s", ext)
	}
	return ok
}
