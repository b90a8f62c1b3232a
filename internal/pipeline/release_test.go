package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/releasegate/internal/checks"
	"github.com/fyrsmithlabs/releasegate/internal/exitcode"
	"github.com/fyrsmithlabs/releasegate/internal/git"
	"github.com/fyrsmithlabs/releasegate/internal/publish"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/runner/runnertest"
	"github.com/fyrsmithlabs/releasegate/internal/steplog"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
	"github.com/fyrsmithlabs/releasegate/internal/version"
)

const (
	testManifest  = `{"name":"ext","publisher":"acme","version":"0.2.0"}` + "\n"
	testChangelog = "# Changelog\n\n## [0.2.0] - Current\n\n- Added things\n\n## [0.1.0] - 2026-01-01\n\n- First\n"
	packageArgv   = "npx @vscode/vsce package --no-dependencies"
)

var releaseDay = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type scenario struct {
	dir      string
	fake     *runnertest.Fake
	confirm  *ui.Scripted
	recorder *steplog.Recorder
	out      *bytes.Buffer
	collab   Collaborators
}

func newScenario(t *testing.T, answers ...bool) *scenario {
	t.Helper()
	dir := t.TempDir()
	s := &scenario{
		dir:      dir,
		fake:     runnertest.New(),
		confirm:  ui.NewScripted(answers...),
		recorder: steplog.New(),
		out:      &bytes.Buffer{},
	}

	old := time.Now().Add(-time.Hour)
	s.write(t, "package.json", testManifest)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "package.json"), old, old))
	s.write(t, "node_modules/.package-lock.json", "{}")
	s.write(t, "CHANGELOG.md", testChangelog)
	s.write(t, "src/a.ts", "export const a = 1;\n")

	s.scriptVerification()

	console := ui.NewConsole(s.out, ui.WithNoColor(true))
	settings := checks.DefaultSettings()
	settings.Publisher = "acme"
	guard := &git.Guard{Runner: s.fake, Dir: dir, UI: console, Confirm: s.confirm}
	pubSettings := publish.DefaultSettings()
	pubSettings.ExtensionID = "acme.ext"

	s.collab = Collaborators{
		Checks: &checks.Checks{Runner: s.fake, UI: console, Dir: dir, Settings: settings},
		Guard:  guard,
		Versions: &version.Reconciler{
			Manifest:  version.Manifest{Path: filepath.Join(dir, "package.json")},
			Changelog: filepath.Join(dir, "CHANGELOG.md"),
			Tags:      guard,
			Confirm:   s.confirm,
			UI:        console,
		},
		Publisher: &publish.Publisher{
			Runner:   s.fake,
			Repo:     guard,
			UI:       console,
			Confirm:  s.confirm,
			Releaser: &publish.CLIReleaser{Runner: s.fake, Dir: dir},
			Dir:      dir,
			Settings: pubSettings,
		},
		Recorder: s.recorder,
		UI:       console,
		Now:      func() time.Time { return releaseDay },
	}
	return s
}

func (s *scenario) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(s.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (s *scenario) artifact() string {
	return filepath.Join(s.dir, "ext.vsix")
}

// scriptVerification scripts a healthy project up to and including Package.
func (s *scenario) scriptVerification() {
	f := s.fake
	f.OK("node --version", "v20.11.0\n").
		OK("npm --version", "10.2.4\n").
		OK("git --version", "git version 2.43.0\n").
		OK("npx @vscode/vsce verify-pat acme", "").
		OK("gh auth status", "Logged in to github.com\n").
		OK("npm list -g --depth=0 --json", `{"dependencies":{"yo":{},"generator-code":{}}}`).
		OK("code --list-extensions", "connor4312.esbuild-problem-matchers\ndbaeumer.vscode-eslint\nms-vscode.extension-test-runner\n").
		OK("git status --porcelain", "").
		OK("git fetch origin", "").
		OK("git rev-parse HEAD", "abc\n").
		OK("git rev-parse @{u}", "abc\n").
		OK("npm run compile", "").
		OK("npm run test", "").
		OK("git tag -l v0.2.0", "")
	f.On(packageArgv, runnertest.Response{Do: func(runner.Command) {
		_ = os.WriteFile(s.artifact(), bytes.Repeat([]byte{'x'}, 2048), 0o644)
	}})
}

// scriptPublish scripts every irreversible command of a v0.2.0 release.
func (s *scenario) scriptPublish() {
	f := s.fake
	// The release commit sees the finalized changelog as a change.
	f.OK("git status --porcelain", " M CHANGELOG.md\n").
		OK("git add -A", "").
		OK("git commit -m release: v0.2.0", "").
		OK("git rev-parse --abbrev-ref HEAD", "main\n").
		OK("git push origin main", "").
		OK("git tag -a v0.2.0 -m Release 0.2.0", "").
		OK("git push origin v0.2.0", "").
		OK("npx @vscode/vsce publish --packagePath "+s.artifact(), "")
}

func (s *scenario) releaseArgv() string {
	return "gh release create v0.2.0 " + s.artifact() + " --title v0.2.0 --notes - Added things"
}

func (s *scenario) names() []string {
	var out []string
	for _, e := range s.recorder.Entries() {
		out = append(out, e.Name)
	}
	return out
}

func TestRelease_AnalyzeOnlySucceeds(t *testing.T) {
	s := newScenario(t)
	before, err := os.ReadFile(filepath.Join(s.dir, "package.json"))
	require.NoError(t, err)

	p := Release(Options{AnalyzeOnly: true}, s.collab)
	out := p.Run(context.Background())

	require.Equal(t, Success, out.Kind, s.out.String())
	assert.Equal(t, "0.2.0", p.Version().String())
	require.NotNil(t, p.Artifact())
	assert.Equal(t, "ext.vsix", p.Artifact().Name())
	assert.Equal(t, exitcode.Success, exitcode.Resolve(s.recorder.Entries()))

	after, err := os.ReadFile(filepath.Join(s.dir, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "analysis must not touch the manifest")

	names := s.names()
	assert.NotContains(t, names, steplog.StepConfirm)
	assert.NotContains(t, names, steplog.StepGitHubCLI)
	assert.NotContains(t, names, steplog.StepMarketplace)
	assert.Equal(t, steplog.StepPackage, names[len(names)-1])
	assert.Zero(t, s.fake.Called("npx @vscode/vsce verify-pat acme"))
}

func TestRelease_TagTakenBumpsPatch(t *testing.T) {
	s := newScenario(t)
	s.fake.Set("git tag -l v0.2.0", runnertest.Response{Stdout: "v0.2.0\n"})
	s.fake.OK("git tag -l v0.2.1", "")

	p := Release(Options{AnalyzeOnly: true}, s.collab)
	require.Equal(t, Success, p.Run(context.Background()).Kind, s.out.String())

	assert.Equal(t, "0.2.1", p.Version().String())
	assert.Contains(t, s.confirm.Questions(), "Bump to 0.2.1?")

	manifest, err := os.ReadFile(filepath.Join(s.dir, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `"version":"0.2.1"`)
	changelog, err := os.ReadFile(filepath.Join(s.dir, "CHANGELOG.md"))
	require.NoError(t, err)
	assert.Contains(t, string(changelog), "## [0.2.1] - Current")
}

func TestRelease_DivergedStopsBeforeBuild(t *testing.T) {
	s := newScenario(t)
	s.fake.Set("git rev-parse @{u}", runnertest.Response{Stdout: "def\n"})
	s.fake.OK("git merge-base HEAD @{u}", "000\n")

	out := Release(Options{AnalyzeOnly: true}, s.collab).Run(context.Background())

	assert.Equal(t, Outcome{Kind: Failed, Stage: StageGitState, Step: steplog.StepRemoteSync}, out)
	assert.Equal(t, exitcode.RemoteSyncFailed, exitcode.Resolve(s.recorder.Entries()))
	assert.Zero(t, s.fake.Called("npm run compile"))
	assert.Zero(t, s.fake.Called(packageArgv))
	assert.Contains(t, s.out.String(), "diverged")
}

func TestRelease_PublishSucceedsWhenReleaseRecordFails(t *testing.T) {
	s := newScenario(t, true)
	s.scriptPublish()
	s.fake.Fail(s.releaseArgv(), 1, "HTTP 401: Bad credentials")

	p := Release(Options{}, s.collab)
	out := p.Run(context.Background())

	require.Equal(t, Success, out.Kind, s.out.String())
	assert.Equal(t, exitcode.Success, exitcode.Resolve(s.recorder.Entries()))
	assert.Equal(t, 1, s.fake.Called(s.releaseArgv()))
	assert.Empty(t, p.ReleaseURL())

	entries := s.recorder.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, steplog.StepRelease, last.Name)
	assert.True(t, last.Passed())
	require.Len(t, last.Warnings, 1)
	assert.Contains(t, last.Warnings[0], "release record not created")

	changelog, err := os.ReadFile(filepath.Join(s.dir, "CHANGELOG.md"))
	require.NoError(t, err)
	assert.Contains(t, string(changelog), "## [0.2.0] - 2026-10-18")

	calls := s.fake.Calls()
	assert.Less(t, indexOf(calls, "git push origin main"), indexOf(calls, "git tag -a v0.2.0 -m Release 0.2.0"))
	assert.Less(t, indexOf(calls, "git push origin v0.2.0"), indexOf(calls, "npx @vscode/vsce publish --packagePath "+s.artifact()))
}

func TestRelease_PublishRecordsReleaseURL(t *testing.T) {
	s := newScenario(t, true)
	s.scriptPublish()
	s.fake.OK(s.releaseArgv(), "https://github.com/acme/ext/releases/tag/v0.2.0\n")

	p := Release(Options{}, s.collab)
	require.Equal(t, Success, p.Run(context.Background()).Kind, s.out.String())

	assert.Equal(t, "https://github.com/acme/ext/releases/tag/v0.2.0", p.ReleaseURL())
	names := s.names()
	assert.Contains(t, names, steplog.StepGitHubCLI)
	assert.Contains(t, names, steplog.StepMarketplace)
	assert.Equal(t, 0, s.recorder.Summary().Warnings)
}

type partialReleaser struct {
	url string
	err error
}

func (r partialReleaser) CreateRelease(context.Context, publish.Release) (string, error) {
	return r.url, r.err
}

func TestRelease_KeepsURLWhenAssetUploadFails(t *testing.T) {
	s := newScenario(t, true)
	s.scriptPublish()
	const url = "https://github.com/acme/ext/releases/tag/v0.2.0"
	uploadErr := fmt.Errorf("%w: uploading ext.vsix: 502 Bad Gateway", publish.ErrReleaseFailed)
	s.collab.Publisher.Releaser = partialReleaser{url: url, err: uploadErr}

	p := Release(Options{}, s.collab)
	require.Equal(t, Success, p.Run(context.Background()).Kind, s.out.String())

	assert.Equal(t, url, p.ReleaseURL())
	assert.ErrorIs(t, p.ReleaseErr(), publish.ErrReleaseFailed)
	assert.Contains(t, s.out.String(), "attach ext.vsix to "+url)

	entries := s.recorder.Entries()
	last := entries[len(entries)-1]
	assert.True(t, last.Passed())
	require.Len(t, last.Warnings, 1)
	assert.Contains(t, last.Warnings[0], "release record created without the artifact")
}

func TestRelease_ExistingReleaseIsAWarning(t *testing.T) {
	s := newScenario(t, true)
	s.scriptPublish()
	s.collab.Publisher.Releaser = partialReleaser{err: fmt.Errorf("%w: v0.2.0: %w", publish.ErrReleaseFailed, publish.ErrReleaseExists)}

	p := Release(Options{}, s.collab)
	require.Equal(t, Success, p.Run(context.Background()).Kind, s.out.String())

	assert.Empty(t, p.ReleaseURL())
	assert.ErrorIs(t, p.ReleaseErr(), publish.ErrReleaseExists)
	assert.Contains(t, s.out.String(), "a GitHub release for v0.2.0 already exists")
	assert.Equal(t, exitcode.Success, exitcode.Resolve(s.recorder.Entries()))
}

func TestRelease_DeclinedConfirmationCancels(t *testing.T) {
	s := newScenario(t, false)

	out := Release(Options{}, s.collab).Run(context.Background())

	assert.Equal(t, Cancelled, out.Kind)
	assert.Equal(t, steplog.StepConfirm, out.Step)
	assert.Equal(t, exitcode.UserCancelled, exitcode.Resolve(s.recorder.Entries()))
	assert.Zero(t, s.fake.Called("git add -A"))
	assert.Contains(t, s.out.String(), "Publish cancelled.")

	changelog, err := os.ReadFile(filepath.Join(s.dir, "CHANGELOG.md"))
	require.NoError(t, err)
	assert.Equal(t, testChangelog, string(changelog))
}

func TestRelease_SkipFlags(t *testing.T) {
	s := newScenario(t)

	opts := Options{AnalyzeOnly: true, SkipTests: true, SkipExtensions: true, SkipGlobalPackages: true}
	require.Equal(t, Success, Release(opts, s.collab).Run(context.Background()).Kind, s.out.String())

	skipped := map[string]string{}
	for _, e := range s.recorder.Entries() {
		if e.Status == steplog.Skipped {
			skipped[e.Name] = e.Reason
		}
	}
	assert.Equal(t, "--skip-tests", skipped[steplog.StepTests])
	assert.Contains(t, skipped, steplog.StepGlobalNPM)
	assert.Contains(t, skipped, steplog.StepExtensions)
	assert.Zero(t, s.fake.Called("npm run test"))
	assert.Zero(t, s.fake.Called("code --list-extensions"))
}

func TestRelease_LineLimitWarningIsRecorded(t *testing.T) {
	s := newScenario(t)
	s.write(t, "src/big.ts", string(bytes.Repeat([]byte("x\n"), 301)))

	require.Equal(t, Success, Release(Options{AnalyzeOnly: true}, s.collab).Run(context.Background()).Kind)

	for _, e := range s.recorder.Entries() {
		if e.Name == steplog.StepLineLimits {
			assert.True(t, e.Passed())
			require.Len(t, e.Warnings, 1)
			assert.Contains(t, e.Warnings[0], "big.ts")
			return
		}
	}
	t.Fatal("line limit step not recorded")
}

func TestRelease_OfferInstall(t *testing.T) {
	t.Run("analyze run installs on yes", func(t *testing.T) {
		s := newScenario(t, true)
		s.fake.OK("code --install-extension "+s.artifact(), "")
		p := Release(Options{AnalyzeOnly: true}, s.collab)
		require.Equal(t, Success, p.Run(context.Background()).Kind)

		assert.True(t, p.OfferInstall(context.Background()))
		assert.Contains(t, s.out.String(), "Install Instructions")
		assert.Equal(t, 1, s.fake.Called("code --install-extension "+s.artifact()))
	})

	t.Run("publish run never offers", func(t *testing.T) {
		s := newScenario(t)
		p := Release(Options{}, s.collab)
		assert.False(t, p.OfferInstall(context.Background()))
		assert.Empty(t, s.confirm.Questions())
	})

	t.Run("no artifact", func(t *testing.T) {
		s := newScenario(t)
		p := Release(Options{AnalyzeOnly: true}, s.collab)
		assert.False(t, p.OfferInstall(context.Background()))
	})
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
