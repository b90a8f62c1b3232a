// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/releasegate/internal/runner"
)

// Response is one scripted outcome for a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error

	// Do runs before the response is returned, e.g. to write files the
	// real tool would have produced.
	Do func(runner.Command)
}

// Fake is a runner.Runner that answers from a script keyed by the
// space-joined argv. When several responses are queued for the same key
// they are consumed in order and the last one repeats.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]Response
	missing   map[string]bool
	calls     []runner.Command

	// Fallback answers unscripted commands. When nil, unscripted commands
	// return an error so tests notice them.
	Fallback *Response
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		responses: make(map[string][]Response),
		missing:   make(map[string]bool),
	}
}

// On scripts responses for argv.
func (f *Fake) On(argv string, rs ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[argv] = append(f.responses[argv], rs...)
	return f
}

// Set replaces whatever is queued for argv.
func (f *Fake) Set(argv string, rs ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[argv] = append([]Response(nil), rs...)
	return f
}

// OK scripts a successful run printing stdout.
func (f *Fake) OK(argv, stdout string) *Fake {
	return f.On(argv, Response{Stdout: stdout})
}

// Fail scripts a run exiting with code and printing stderr.
func (f *Fake) Fail(argv string, code int, stderr string) *Fake {
	return f.On(argv, Response{ExitCode: code, Stderr: stderr})
}

// Missing marks programs as not installed.
func (f *Fake) Missing(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.missing[n] = true
	}
	return f
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if len(cmd.Argv) == 0 {
		return nil, runner.ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	if f.missing[cmd.Argv[0]] {
		f.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", cmd.Argv[0], runner.ErrNotFound)
	}
	key := cmd.String()
	var resp Response
	queue, ok := f.responses[key]
	switch {
	case ok && len(queue) > 0:
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[key] = queue[1:]
		}
	case f.Fallback != nil:
		resp = *f.Fallback
	default:
		f.mu.Unlock()
		return nil, fmt.Errorf("runnertest: unexpected command %q", key)
	}
	f.mu.Unlock()

	if resp.Do != nil {
		resp.Do(cmd)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &runner.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, nil
}

// LookPath implements runner.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("%s: %w", name, runner.ErrNotFound)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns the argv of every command run so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Commands returns every command run so far, in order.
func (f *Fake) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}

// Called counts how often argv was run.
func (f *Fake) Called(argv string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == argv {
			n++
		}
	}
	return n
}
