// Package steplog records the outcome and duration of every pipeline step.
//
// The run log is append-only and holds exactly one entry per invoked step,
// in execution order. A partial log (the pipeline aborted early) is still a
// valid log and can be reported.
package steplog

import (
	"sync"
	"time"
)

// Status is the recorded outcome of a step.
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASS"
	case Failed:
		return "FAIL"
	case Skipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Entry is one line of the run log.
type Entry struct {
	Name     string
	Status   Status
	Duration time.Duration
	Warnings []string
	// Reason is set for skipped entries.
	Reason string
}

// Passed reports whether the step ran and succeeded.
func (e Entry) Passed() bool { return e.Status == Passed }

// Failed reports whether the step ran and failed.
func (e Entry) Failed() bool { return e.Status == Failed }

// Summary counts entries by status.
type Summary struct {
	Passed   int
	Failed   int
	Skipped  int
	Warnings int
	Total    time.Duration
}

// Recorder is the run log.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	current *pending
	onPanic func([]Entry)
	now     func() time.Time
}

type pending struct {
	name     string
	start    time.Time
	warnings []string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPanicHook registers fn to receive the partial log when a step panics.
// The hook runs before the panic continues unwinding.
func WithPanicHook(fn func([]Entry)) Option {
	return func(r *Recorder) { r.onPanic = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New creates an empty Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run times fn, records one entry named name and returns fn's result.
//
// Panics in fn are not recovered. The entry is recorded as failed, the panic
// hook is given the log, and the panic is re-raised.
func (r *Recorder) Run(name string, fn func() bool) bool {
	r.mu.Lock()
	r.current = &pending{name: name, start: r.now()}
	r.mu.Unlock()

	finished := false
	defer func() {
		if finished {
			return
		}
		p := recover()
		r.finish(false)
		r.flush()
		if p != nil {
			panic(p)
		}
	}()

	ok := fn()
	finished = true
	r.finish(ok)
	return ok
}

func (r *Recorder) finish(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current
	r.current = nil
	if cur == nil {
		return
	}
	status := Failed
	if ok {
		status = Passed
	}
	r.entries = append(r.entries, Entry{
		Name:     cur.name,
		Status:   status,
		Duration: r.now().Sub(cur.start),
		Warnings: cur.warnings,
	})
}

func (r *Recorder) flush() {
	if r.onPanic == nil {
		return
	}
	defer func() { _ = recover() }()
	r.onPanic(r.Entries())
}

// Skip records name as skipped without running anything.
func (r *Recorder) Skip(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Name: name, Status: Skipped, Reason: reason})
}

// Warn attaches msg to the step currently running. Outside a step it is
// attached to the last recorded entry, if any.
func (r *Recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.warnings = append(r.current.warnings, msg)
		return
	}
	if n := len(r.entries); n > 0 {
		r.entries[n-1].Warnings = append(r.entries[n-1].Warnings, msg)
	}
}

// Entries returns a copy of the log in execution order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		e.Warnings = append([]string(nil), e.Warnings...)
		out[i] = e
	}
	return out
}

// Summary counts the recorded entries.
func (r *Recorder) Summary() Summary {
	return Summarize(r.Entries())
}

// Summarize counts entries by status.
func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
		s.Warnings += len(e.Warnings)
		s.Total += e.Duration
	}
	return s
}
