// Package publish implements the packaging and irreversible publish stage
// bodies: packaging the .vsix, the confirmation gate, the release commit and
// tag, the marketplace upload and the hosted release record.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/git"
	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/secrets"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
	"github.com/fyrsmithlabs/releasegate/internal/version"
)

// ErrNoArtifact indicates packaging produced no file matching the glob.
var ErrNoArtifact = errors.New("no artifact found after packaging")

// Settings carries the publish commands and display values.
type Settings struct {
	PackageCommand []string
	ArtifactGlob   string

	// UploadCommand is run with --packagePath <artifact> appended.
	UploadCommand []string

	// ExtensionID is publisher.name, shown in the publish summary.
	ExtensionID string
	RepoURL     string
	Remote      string
}

// DefaultSettings returns the vsce-based defaults.
func DefaultSettings() Settings {
	return Settings{
		PackageCommand: []string{"npx", "@vscode/vsce", "package", "--no-dependencies"},
		ArtifactGlob:   "*.vsix",
		UploadCommand:  []string{"npx", "@vscode/vsce", "publish"},
		Remote:         "origin",
	}
}

// Artifact is a packaged extension file.
type Artifact struct {
	Path string
	Size int64
}

// Name returns the artifact file name.
func (a *Artifact) Name() string { return filepath.Base(a.Path) }

// SizeKB returns the size in kibibytes.
func (a *Artifact) SizeKB() float64 { return float64(a.Size) / 1024 }

// Publisher runs the package and publish steps for one project.
type Publisher struct {
	Runner   runner.Runner
	Repo     *git.Guard
	UI       ui.Formatter
	Confirm  ui.Confirmer
	Logger   *logging.Logger
	Releaser Releaser
	Dir      string
	Settings Settings
}

func (p *Publisher) log() *logging.Logger {
	if p.Logger == nil {
		return logging.Nop()
	}
	return p.Logger
}

func (p *Publisher) remote() string {
	if p.Settings.Remote == "" {
		return "origin"
	}
	return p.Settings.Remote
}

func (p *Publisher) showOutput(res *runner.Result) {
	if res == nil {
		return
	}
	for _, out := range []string{res.Stdout, res.Stderr} {
		if out = strings.TrimRight(out, "\r\n "); out != "" {
			p.UI.Detail(secrets.Redact(out))
		}
	}
}

// Package builds the artifact and returns the newest file matching the
// artifact glob.
func (p *Publisher) Package(ctx context.Context) (*Artifact, bool) {
	argv := p.Settings.PackageCommand
	if len(argv) == 0 {
		p.UI.Fail("No package command configured")
		return nil, false
	}
	p.UI.Info("Packaging %s file...", strings.TrimPrefix(p.Settings.ArtifactGlob, "*"))
	res, err := p.Runner.Run(ctx, runner.Cmd(argv...).In(p.Dir))
	if err != nil {
		p.UI.Fail("Packaging failed: %v", err)
		p.log().Error(ctx, "package command failed", zap.Error(err))
		return nil, false
	}
	if !res.OK() {
		p.UI.Fail("Packaging failed:")
		p.showOutput(res)
		return nil, false
	}

	a, err := p.NewestArtifact()
	if err != nil {
		p.UI.Fail("%v", err)
		return nil, false
	}
	p.UI.OK("Created: %s (%.0f KB)", a.Name(), a.SizeKB())
	p.log().Info(ctx, "artifact packaged", zap.String("path", a.Path), zap.Int64("size", a.Size))
	return a, true
}

// NewestArtifact returns the most recently modified file matching the
// artifact glob in the project directory.
func (p *Publisher) NewestArtifact() (*Artifact, error) {
	pattern := p.Settings.ArtifactGlob
	if pattern == "" {
		pattern = "*.vsix"
	}
	matches, err := filepath.Glob(filepath.Join(p.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
	}

	var newest *Artifact
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == nil || mod > newestMod {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			newest = &Artifact{Path: abs, Size: info.Size()}
			newestMod = mod
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, pattern)
	}
	return newest, nil
}

// ConfirmPublish lists every irreversible action and asks to proceed. The
// default answer is no.
func (p *Publisher) ConfirmPublish(v version.Version, a *Artifact) bool {
	p.UI.Heading("Publish Summary")
	p.UI.Info("Version:     %s", v.Tag())
	if p.Settings.ExtensionID != "" {
		p.UI.Info("Marketplace: %s", p.Settings.ExtensionID)
	}
	if p.Settings.RepoURL != "" {
		p.UI.Info("Repository:  %s", p.Settings.RepoURL)
	}
	if a != nil {
		p.UI.Info("Artifact:    %s (%.0f KB)", a.Name(), a.SizeKB())
	}
	p.UI.Detail(strings.Join([]string{
		"This will:",
		"  1. Finalize the changelog (Current -> today)",
		fmt.Sprintf("  2. Commit and push to %s", p.remote()),
		fmt.Sprintf("  3. Create git tag %s", v.Tag()),
		"  4. Publish to the marketplace",
		"  5. Create a GitHub release with the artifact",
	}, "\n"))
	p.UI.Warn("These actions are irreversible.")
	return p.Confirm.Ask("Proceed with publish?", false)
}

// CommitAndPush commits all pending changes as the release commit and pushes
// the current branch. Nothing to commit is not an error; the branch is
// pushed either way.
func (p *Publisher) CommitAndPush(ctx context.Context, v version.Version) bool {
	p.UI.Info("Committing release %s...", v.Tag())
	committed, err := p.Repo.CommitAll(ctx, "release: "+v.Tag())
	if err != nil {
		p.UI.Fail("git commit failed: %v", err)
		p.log().Error(ctx, "release commit failed", zap.Error(err))
		return false
	}
	if !committed {
		p.UI.OK("No changes to commit")
	}

	branch := p.Repo.CurrentBranch(ctx)
	p.UI.Info("Pushing to %s...", p.remote())
	if err := p.Repo.Push(ctx, branch); err != nil {
		p.UI.Fail("git push failed: %v", err)
		p.log().Error(ctx, "push failed", zap.String("branch", branch), zap.Error(err))
		return false
	}
	p.UI.OK("Pushed to %s/%s", p.remote(), branch)
	return true
}

// Tag creates the annotated release tag and pushes it.
func (p *Publisher) Tag(ctx context.Context, v version.Version) bool {
	tag := v.Tag()
	p.UI.Info("Creating tag %s...", tag)
	if err := p.Repo.CreateTag(ctx, tag, "Release "+v.String()); err != nil {
		p.UI.Fail("git tag failed: %v", err)
		return false
	}
	if err := p.Repo.Push(ctx, tag); err != nil {
		p.UI.Fail("git push tag failed: %v", err)
		p.log().Error(ctx, "tag push failed", zap.String("tag", tag), zap.Error(err))
		return false
	}
	p.UI.OK("Tag %s created and pushed", tag)
	return true
}

// Upload publishes the already built artifact to the marketplace, so the
// uploaded bytes are exactly the ones that were validated.
func (p *Publisher) Upload(ctx context.Context, a *Artifact) bool {
	if a == nil {
		p.UI.Fail("No artifact to publish")
		return false
	}
	argv := append(append([]string(nil), p.Settings.UploadCommand...), "--packagePath", a.Path)
	p.UI.Info("Publishing %s to marketplace...", a.Name())
	res, err := p.Runner.Run(ctx, runner.Cmd(argv...).In(p.Dir))
	if err != nil {
		p.UI.Fail("Marketplace publish failed: %v", err)
		return false
	}
	if !res.OK() {
		p.UI.Fail("Marketplace publish failed:")
		p.showOutput(res)
		return false
	}
	p.UI.OK("Published to marketplace")
	return true
}

// CreateRelease records the hosted release for v with the artifact
// attached. It returns the release URL when known, even alongside an error
// when the record was created but the artifact upload failed.
func (p *Publisher) CreateRelease(ctx context.Context, v version.Version, a *Artifact, notes string) (string, error) {
	if p.Releaser == nil {
		return "", fmt.Errorf("%w: no release provider configured", ErrReleaseFailed)
	}
	rel := Release{Tag: v.Tag(), Title: v.Tag(), Notes: notes}
	if a != nil {
		rel.Asset = a.Path
	}
	p.UI.Info("Creating GitHub release %s...", rel.Tag)
	url, err := p.Releaser.CreateRelease(ctx, rel)
	if err != nil {
		p.log().Error(ctx, "release record failed", zap.String("tag", rel.Tag), zap.String("url", url), zap.Error(err))
		switch {
		case url != "":
			p.UI.Fail("GitHub release %s created, but attaching the artifact failed: %v", rel.Tag, err)
		case errors.Is(err, ErrReleaseExists):
			p.UI.Fail("GitHub release %s already exists", rel.Tag)
		default:
			p.UI.Fail("GitHub release failed: %v", err)
			if _, ok := p.Releaser.(*CLIReleaser); ok {
				p.printTroubleshooting()
			}
		}
		return url, err
	}
	p.UI.OK("GitHub release %s created", rel.Tag)
	return url, nil
}

// A stale GITHUB_TOKEN overriding gh's keyring login is the usual cause.
func (p *Publisher) printTroubleshooting() {
	p.UI.Info("Troubleshooting:")
	p.UI.Detail(strings.Join([]string{
		"1. Check auth: gh auth status",
		"2. If GITHUB_TOKEN is set, clear it:",
		"   PowerShell: $env:GITHUB_TOKEN = \"\"",
		"   Bash: unset GITHUB_TOKEN",
	}, "\n"))
}
