// Package runner executes external commands for the release pipeline.
//
// Every interaction with the build toolchain, git, and the packaging and
// marketplace tools goes through the Runner interface. A non-zero exit status
// is reported in Result.ExitCode and is never returned as an error; errors are
// reserved for conditions where no exit status exists:
//
//   - ErrNotFound: the program is not installed or not executable
//   - ErrTimeout: the per-command timeout elapsed and the process was killed
//   - ErrEmptyCommand: no argv was supplied
//
// Commands run synchronously and are never retried.
package runner

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the program could not be located or executed.
	ErrNotFound = errors.New("command not found")

	// ErrTimeout indicates the command exceeded its timeout.
	ErrTimeout = errors.New("command timed out")

	// ErrEmptyCommand indicates a Command with no argv.
	ErrEmptyCommand = errors.New("empty command")
)

// Command describes a single external process invocation.
type Command struct {
	// Argv is the program followed by its arguments.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds the run. Zero means no timeout beyond ctx.
	Timeout time.Duration

	// Env is appended to the inherited environment.
	Env map[string]string
}

// Cmd builds a Command from an argv.
func Cmd(argv ...string) Command {
	return Command{Argv: argv}
}

// In returns a copy of c with its working directory set.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithTimeout returns a copy of c with its timeout set.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// String renders the argv for display.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Result holds the captured output and exit status of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// OK reports whether the process exited with status zero.
func (r *Result) OK() bool {
	return r != nil && r.ExitCode == 0
}

// Output returns trimmed stdout, or trimmed stderr when stdout is empty.
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	return strings.TrimSpace(r.Stderr)
}

// Runner executes external commands.
type Runner interface {
	// Run executes cmd and waits for it to finish.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// LookPath resolves a program name against PATH.
	LookPath(name string) (string, error)
}
