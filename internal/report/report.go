// Package report persists a run's step log as a plain-text report and
// renders the terminal timing chart.
package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/releasegate/internal/steplog"
)

// Kind distinguishes analysis runs from publish runs.
type Kind string

const (
	Analyze Kind = "analyze"
	Publish Kind = "publish"
)

func (k Kind) title() string {
	if k == Publish {
		return "Publish"
	}
	return "Analysis"
}

// maxSuffix bounds the collision suffixes tried before giving up.
const maxSuffix = 100

// Run is everything a report records about one invocation.
type Run struct {
	ID      string
	Kind    Kind
	Version string
	Outcome string
	Entries []steplog.Entry

	ArtifactPath string
	ArtifactSize int64

	MarketplaceURL string
	ReleaseURL     string
}

// Sink writes reports into a directory. Reports are never overwritten.
type Sink struct {
	Dir     string
	Project string
	Now     func() time.Time
}

func (s *Sink) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the report file name for a run started at t.
func (s *Sink) FileName(kind Kind, t time.Time) string {
	project := unsafeName.ReplaceAllString(s.Project, "_")
	if project == "" {
		project = "project"
	}
	return fmt.Sprintf("%s_%s_%s_report.log", t.Format("20060102_150405"), project, kind)
}

// Save writes the report and returns its path. A name collision gets a
// numeric suffix instead of replacing the existing file.
func (s *Sink) Save(run Run) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	now := s.now()
	base := strings.TrimSuffix(s.FileName(run.Kind, now), ".log")

	for i := 0; i < maxSuffix; i++ {
		name := base + ".log"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.log", base, i)
		}
		path := filepath.Join(s.Dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating report: %w", err)
		}
		werr := Write(f, run, now)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return path, fmt.Errorf("writing report: %w", werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("creating report: %d files named %s already exist", maxSuffix, base)
}

// Write renders the report text.
func Write(w io.Writer, run Run, generated time.Time) error {
	sum := steplog.Summarize(run.Entries)

	var b strings.Builder
	fmt.Fprintf(&b, "releasegate %s Report\n", run.Kind.title())
	fmt.Fprintf(&b, "Generated: %s\n", generated.Format(time.RFC3339))
	if run.ID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", run.ID)
	}
	version := run.Version
	if version == "" {
		version = "unknown"
	}
	fmt.Fprintf(&b, "Extension version: %s\n", version)
	if run.Outcome != "" {
		fmt.Fprintf(&b, "Outcome: %s\n", run.Outcome)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Results: %d passed, %d failed, %d skipped, %d warning(s)\n",
		sum.Passed, sum.Failed, sum.Skipped, sum.Warnings)
	fmt.Fprintf(&b, "Total time: %s\n", Elapsed(sum.Total))

	if run.ArtifactPath != "" {
		fmt.Fprintf(&b, "VSIX file: %s\n", filepath.Base(run.ArtifactPath))
		fmt.Fprintf(&b, "VSIX size: %.1f KB\n", float64(run.ArtifactSize)/1024)
		fmt.Fprintf(&b, "VSIX path: %s\n", run.ArtifactPath)
	}
	if run.Kind == Publish {
		if run.MarketplaceURL != "" {
			fmt.Fprintf(&b, "Marketplace: %s\n", run.MarketplaceURL)
		}
		if run.ReleaseURL != "" {
			fmt.Fprintf(&b, "GitHub release: %s\n", run.ReleaseURL)
		}
	}

	if sum.Warnings > 0 {
		b.WriteString("\nWARNINGS:\n")
		for _, e := range run.Entries {
			for _, msg := range e.Warnings {
				fmt.Fprintf(&b, "  - %s: %s\n", e.Name, msg)
			}
		}
	}

	b.WriteString("\nStep Details:\n")
	for _, e := range run.Entries {
		line := fmt.Sprintf("  [%s] %-25s %8s", tag(e), e.Name, Elapsed(e.Duration))
		if e.Status == steplog.Skipped && e.Reason != "" {
			line += "  (" + e.Reason + ")"
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func tag(e steplog.Entry) string {
	if e.Status == steplog.Passed && len(e.Warnings) > 0 {
		return "WARN"
	}
	return e.Status.String()
}

// Elapsed formats a duration the way the reports and the timing chart
// show it: milliseconds below one second, tenths of a second above.
func Elapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
