package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/releasegate/internal/steplog"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleEntries() []steplog.Entry {
	return []steplog.Entry{
		{Name: steplog.StepNode, Status: steplog.Passed, Duration: 120 * time.Millisecond},
		{Name: steplog.StepTests, Status: steplog.Skipped, Reason: "--skip-tests"},
		{Name: steplog.StepLineLimits, Status: steplog.Passed, Duration: 40 * time.Millisecond,
			Warnings: []string{"src/big.ts exceeds 300-line limit (412 lines)"}},
		{Name: steplog.StepCompile, Status: steplog.Failed, Duration: 2500 * time.Millisecond},
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{12345 * time.Millisecond, "12.3s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Elapsed(tt.in))
	}
}

func TestSink_FileName(t *testing.T) {
	s := &Sink{Project: "acme ext/v2"}
	assert.Equal(t, "20260314_092653_acme_ext_v2_publish_report.log", s.FileName(Publish, fixedNow))

	s = &Sink{}
	assert.Equal(t, "20260314_092653_project_analyze_report.log", s.FileName(Analyze, fixedNow))
}

func TestSink_SaveNeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	s := &Sink{Dir: dir, Project: "ext", Now: func() time.Time { return fixedNow }}

	first, err := s.Save(Run{Kind: Analyze, Version: "1.0.0"})
	require.NoError(t, err)
	second, err := s.Save(Run{Kind: Analyze, Version: "1.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "20260314_092653_ext_analyze_report.log", filepath.Base(first))
	assert.Equal(t, "20260314_092653_ext_analyze_report_1.log", filepath.Base(second))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Extension version: 1.0.0")
}

func TestWrite_Content(t *testing.T) {
	var buf bytes.Buffer
	run := Run{
		ID:             "run-1",
		Kind:           Publish,
		Version:        "1.2.3",
		Outcome:        "failed at Compile",
		Entries:        sampleEntries(),
		ArtifactPath:   "/abs/ext-1.2.3.vsix",
		ArtifactSize:   2048,
		MarketplaceURL: "https://marketplace.visualstudio.com/items?itemName=acme.ext",
		ReleaseURL:     "https://github.com/acme/ext/releases/tag/v1.2.3",
	}
	require.NoError(t, Write(&buf, run, fixedNow))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "releasegate Publish Report\n"))
	assert.Contains(t, out, "Generated: 2026-03-14T09:26:53Z")
	assert.Contains(t, out, "Run ID: run-1")
	assert.Contains(t, out, "Outcome: failed at Compile")
	assert.Contains(t, out, "Results: 2 passed, 1 failed, 1 skipped, 1 warning(s)")
	assert.Contains(t, out, "Total time: 2.7s")
	assert.Contains(t, out, "VSIX file: ext-1.2.3.vsix")
	assert.Contains(t, out, "VSIX size: 2.0 KB")
	assert.Contains(t, out, "GitHub release: https://github.com/acme/ext/releases/tag/v1.2.3")
	assert.Contains(t, out, "WARNINGS:\n  - File line limits: src/big.ts exceeds 300-line limit (412 lines)\n")
	assert.Contains(t, out, "[PASS] Node.js")
	assert.Contains(t, out, "[SKIP] Tests")
	assert.Contains(t, out, "(--skip-tests)")
	assert.Contains(t, out, "[WARN] File line limits")
	assert.Contains(t, out, "[FAIL] Compile")
}

func TestWrite_AnalyzeOmitsLinksAndWarnings(t *testing.T) {
	var buf bytes.Buffer
	run := Run{
		Kind:       Analyze,
		Entries:    []steplog.Entry{{Name: steplog.StepNode, Status: steplog.Passed}},
		ReleaseURL: "https://example.invalid",
	}
	require.NoError(t, Write(&buf, run, fixedNow))
	out := buf.String()

	assert.Contains(t, out, "Analysis Report")
	assert.Contains(t, out, "Extension version: unknown")
	assert.NotContains(t, out, "GitHub release")
	assert.NotContains(t, out, "WARNINGS")
}

func TestBarWidth(t *testing.T) {
	assert.Equal(t, 0, BarWidth(0, time.Second))
	assert.Equal(t, 0, BarWidth(time.Second, 0))
	assert.Equal(t, 15, BarWidth(time.Second, 2*time.Second))
	assert.Equal(t, 30, BarWidth(2*time.Second, 2*time.Second))
}

func TestPrintTiming(t *testing.T) {
	var buf bytes.Buffer
	PrintTiming(ui.NewConsole(&buf, ui.WithNoColor(true)), sampleEntries())
	out := buf.String()

	assert.Contains(t, out, "Timing")
	assert.Contains(t, out, "✗ Compile")
	assert.Contains(t, out, "- Tests")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "2.7s")
	assert.Contains(t, out, strings.Repeat("█", 27))
	assert.NotContains(t, out, strings.Repeat("█", 31))
}
