// Package checks implements the verification stage bodies of a release run:
// toolchain prerequisites, environment setup, project dependencies, build,
// tests and source quality.
//
// Every check is a func(ctx) bool suitable for a pipeline step. A check
// prints its own categorized lines through the formatter and returns false
// on a blocking failure; it never returns an error across the step boundary.
package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/secrets"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
)

// Settings carries the project-specific knobs of the checks.
type Settings struct {
	// MinNodeMajor is the lowest accepted Node.js major version.
	MinNodeMajor int

	// AuthTimeout bounds `gh auth status`.
	AuthTimeout time.Duration

	// Publisher is the marketplace publisher whose token is verified.
	Publisher string

	GlobalPackages   []string
	EditorExtensions []string

	InstallCommand []string
	CompileCommand []string
	TestCommand    []string

	// Manifest is the package.json path.
	Manifest string

	SourceDir    string
	SourceExts   []string
	MaxFileLines int
	// IgnoreFiles name gitignore-style files whose patterns exclude
	// generated sources from the line limit.
	IgnoreFiles []string
}

// DefaultSettings returns the settings for a stock extension project.
func DefaultSettings() Settings {
	return Settings{
		MinNodeMajor: 18,
		AuthTimeout:  10 * time.Second,
		GlobalPackages: []string{
			"yo",
			"generator-code",
		},
		EditorExtensions: []string{
			"connor4312.esbuild-problem-matchers",
			"dbaeumer.vscode-eslint",
			"ms-vscode.extension-test-runner",
		},
		InstallCommand: []string{"npm", "install"},
		CompileCommand: []string{"npm", "run", "compile"},
		TestCommand:    []string{"npm", "run", "test"},
		Manifest:       "package.json",
		SourceDir:      "src",
		SourceExts:     []string{".ts"},
		MaxFileLines:   300,
		IgnoreFiles:    []string{".gitignore"},
	}
}

// Checks runs the verification stages against one project directory.
type Checks struct {
	Runner   runner.Runner
	UI       ui.Formatter
	Logger   *logging.Logger
	Dir      string
	Settings Settings

	// Warn attaches a non-blocking warning to the step being recorded.
	Warn func(msg string)
}

func (c *Checks) log() *logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

// warn prints a warning and records it against the running step.
func (c *Checks) warn(format string, args ...any) {
	c.UI.Warn(format, args...)
	if c.Warn != nil {
		c.Warn(fmt.Sprintf(format, args...))
	}
}

// run executes argv in the project directory.
func (c *Checks) run(ctx context.Context, argv ...string) (*runner.Result, error) {
	return c.Runner.Run(ctx, runner.Cmd(argv...).In(c.Dir))
}

// showOutput prints captured output of a failed command.
func (c *Checks) showOutput(res *runner.Result) {
	if res == nil {
		return
	}
	for _, out := range []string{res.Stdout, res.Stderr} {
		if out = strings.TrimRight(out, "\r\n "); out != "" {
			c.UI.Detail(secrets.Redact(out))
		}
	}
}

// runProjectCommand runs a configured project command, showing its output on
// failure.
func (c *Checks) runProjectCommand(ctx context.Context, what string, argv []string) bool {
	if len(argv) == 0 {
		c.UI.Fail("No %s command configured", what)
		return false
	}
	cmd := strings.Join(argv, " ")
	c.UI.Info("Running %s...", cmd)
	res, err := c.run(ctx, argv...)
	if err != nil {
		c.UI.Fail("%s failed: %v", capitalize(what), err)
		c.log().Error(ctx, "project command failed", zap.String("command", cmd), zap.Error(err))
		return false
	}
	if !res.OK() {
		c.UI.Fail("%s failed:", capitalize(what))
		c.showOutput(res)
		c.log().Warn(ctx, "project command exited non-zero",
			zap.String("command", cmd),
			zap.Int("exit_code", res.ExitCode),
		)
		return false
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
