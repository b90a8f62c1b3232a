package checks

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// path resolves p against the project directory.
func (c *Checks) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Dependencies installs node_modules when it is missing or older than the
// manifest.
func (c *Checks) Dependencies(ctx context.Context) bool {
	manifest := c.Settings.Manifest
	if manifest == "" {
		manifest = "package.json"
	}
	mi, err := os.Stat(c.path(manifest))
	if err != nil {
		c.UI.Fail("%s not found in %s", filepath.Base(manifest), c.Dir)
		return false
	}

	modules := c.path("node_modules")
	if _, err := os.Stat(modules); errors.Is(err, fs.ErrNotExist) {
		c.UI.Fix("node_modules/ missing, running npm install")
		return c.install(ctx)
	}

	lock, err := os.Stat(filepath.Join(modules, ".package-lock.json"))
	if err == nil && mi.ModTime().After(lock.ModTime()) {
		c.UI.Fix("%s changed since last install, running npm install", filepath.Base(manifest))
		return c.install(ctx)
	}

	c.UI.OK("node_modules/ up to date")
	return true
}

func (c *Checks) install(ctx context.Context) bool {
	if !c.runProjectCommand(ctx, "install", c.Settings.InstallCommand) {
		return false
	}
	c.UI.OK("Dependencies installed")
	return true
}

// Compile runs the compile command (type-check, lint and bundle).
func (c *Checks) Compile(ctx context.Context) bool {
	if !c.runProjectCommand(ctx, "compile", c.Settings.CompileCommand) {
		return false
	}
	c.UI.OK("Compile passed (type-check + lint + esbuild)")
	return true
}

// Tests runs the test command.
func (c *Checks) Tests(ctx context.Context) bool {
	if !c.runProjectCommand(ctx, "tests", c.Settings.TestCommand) {
		return false
	}
	c.UI.OK("Tests passed")
	return true
}
