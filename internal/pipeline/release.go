package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/checks"
	"github.com/fyrsmithlabs/releasegate/internal/git"
	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/publish"
	"github.com/fyrsmithlabs/releasegate/internal/steplog"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
	"github.com/fyrsmithlabs/releasegate/internal/version"
)

// Stage names.
const (
	StagePrerequisites = "Prerequisites"
	StageEnvironment   = "Environment Setup"
	StageGitState      = "Git State"
	StageDependencies  = "Dependencies"
	StageBuild         = "Build"
	StageTests         = "Tests"
	StageQuality       = "Quality"
	StageVersion       = "Version"
	StagePackage       = "Package"
	StageConfirm       = "Confirmation"
	StageFinalize      = "Changelog Finalization"
	StageCommitPush    = "Commit + Push"
	StageTag           = "Tag"
	StageUpload        = "Upload"
	StageRelease       = "Release Record"
)

// Options select the pipeline mode.
type Options struct {
	AnalyzeOnly        bool
	SkipTests          bool
	SkipExtensions     bool
	SkipGlobalPackages bool
	AutoConfirm        bool
}

// Collaborators are the stage bodies and shared capabilities of a run.
type Collaborators struct {
	Checks    *checks.Checks
	Guard     *git.Guard
	Versions  *version.Reconciler
	Publisher *publish.Publisher
	Recorder  *steplog.Recorder
	UI        ui.Formatter
	Logger    *logging.Logger

	// Now dates the finalized changelog section.
	Now func() time.Time
}

// Pipeline is one release run. Results of earlier stages (the resolved
// version, the artifact) are carried to later ones.
type Pipeline struct {
	opts Options
	c    Collaborators

	version    version.Version
	artifact   *publish.Artifact
	releaseURL string
	releaseErr error
}

// Release builds the release pipeline. Warnings raised by the checks are
// attached to the step that raised them.
func Release(opts Options, c Collaborators) *Pipeline {
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Checks != nil && c.Checks.Warn == nil {
		c.Checks.Warn = c.Recorder.Warn
	}
	return &Pipeline{opts: opts, c: c}
}

// Version returns the resolved release version, zero until the Version
// stage has run.
func (p *Pipeline) Version() version.Version { return p.version }

// Artifact returns the packaged artifact, nil until the Package stage has run.
func (p *Pipeline) Artifact() *publish.Artifact { return p.artifact }

// ReleaseURL returns the release record URL, if one was created.
func (p *Pipeline) ReleaseURL() string { return p.releaseURL }

// ReleaseErr returns why the release record is missing or incomplete. A
// non-nil error with a ReleaseURL means the record exists without the
// artifact.
func (p *Pipeline) ReleaseErr() error { return p.releaseErr }

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context) Outcome {
	ctrl := &Controller{Recorder: p.c.Recorder, UI: p.c.UI, Logger: p.c.Logger}
	return ctrl.Run(ctx, p.Stages())
}

// Stages returns the ordered stage list. Analyze-only runs end after
// Package.
func (p *Pipeline) Stages() []Stage {
	stages := []Stage{
		p.prerequisites(),
		p.environment(),
		{Name: StageGitState, Steps: []Step{
			{Name: steplog.StepWorkingTree, Run: p.c.Guard.CheckWorkingTree},
			{Name: steplog.StepRemoteSync, Run: p.c.Guard.CheckRemoteSync},
		}},
		{Name: StageDependencies, Steps: []Step{
			{Name: steplog.StepDependencies, Run: p.c.Checks.Dependencies},
		}},
		{Name: StageBuild, Steps: []Step{
			{Name: steplog.StepCompile, Run: p.c.Checks.Compile},
		}},
		{
			Name:       StageTests,
			Steps:      []Step{{Name: steplog.StepTests, Run: p.c.Checks.Tests}},
			Skip:       p.opts.SkipTests,
			SkipReason: "--skip-tests",
		},
		{Name: StageQuality, Steps: []Step{
			{Name: steplog.StepLineLimits, Run: p.c.Checks.LineLimits},
		}},
		{Name: StageVersion, Steps: []Step{
			{Name: steplog.StepManifest, Run: p.manifestVersion},
			{Name: steplog.StepChangelog, Run: p.syncChangelog},
			{Name: steplog.StepVersionTag, Run: p.resolveTag},
		}},
		{Name: StagePackage, Steps: []Step{
			{Name: steplog.StepPackage, Run: p.pack},
		}},
	}
	if p.opts.AnalyzeOnly {
		return stages
	}

	return append(stages,
		Stage{Name: StageConfirm, Gate: true, Steps: []Step{
			{Name: steplog.StepConfirm, Run: p.confirm},
		}},
		Stage{Name: StageFinalize, Steps: []Step{
			{Name: steplog.StepFinalize, Run: p.finalize},
		}},
		Stage{Name: StageCommitPush, Steps: []Step{
			{Name: steplog.StepCommitPush, Run: func(ctx context.Context) bool {
				return p.c.Publisher.CommitAndPush(ctx, p.version)
			}},
		}},
		Stage{Name: StageTag, Steps: []Step{
			{Name: steplog.StepTag, Run: func(ctx context.Context) bool {
				return p.c.Publisher.Tag(ctx, p.version)
			}},
		}},
		Stage{Name: StageUpload, Steps: []Step{
			{Name: steplog.StepUpload, Run: func(ctx context.Context) bool {
				return p.c.Publisher.Upload(ctx, p.artifact)
			}},
		}},
		Stage{Name: StageRelease, Steps: []Step{
			{Name: steplog.StepRelease, Run: p.release},
		}},
	)
}

func (p *Pipeline) prerequisites() Stage {
	steps := []Step{
		{Name: steplog.StepNode, Run: p.c.Checks.Node},
		{Name: steplog.StepNPM, Run: p.c.Checks.NPM},
		{Name: steplog.StepGit, Run: p.c.Checks.Git},
		{Name: steplog.StepEditorCLI, Run: p.c.Checks.EditorCLI},
	}
	if !p.opts.AnalyzeOnly {
		if _, ok := p.c.Publisher.Releaser.(*publish.CLIReleaser); ok {
			steps = append(steps, Step{Name: steplog.StepGitHubCLI, Run: p.c.Checks.GitHubCLI})
		}
		steps = append(steps, Step{Name: steplog.StepMarketplace, Run: p.c.Checks.MarketplacePAT})
	}
	return Stage{Name: StagePrerequisites, Steps: steps}
}

func (p *Pipeline) environment() Stage {
	global := Step{Name: steplog.StepGlobalNPM, Run: p.c.Checks.GlobalPackages}
	if p.opts.SkipGlobalPackages {
		global.SkipReason = "--skip-global-npm"
	}
	exts := Step{Name: steplog.StepExtensions, Run: p.c.Checks.EditorExtensions}
	if p.opts.SkipExtensions {
		exts.SkipReason = "--skip-extensions"
	}
	return Stage{
		Name:       StageEnvironment,
		Steps:      []Step{global, exts},
		Skip:       p.opts.SkipGlobalPackages && p.opts.SkipExtensions,
		SkipReason: "--skip-global-npm --skip-extensions",
	}
}

func (p *Pipeline) manifestVersion(ctx context.Context) bool {
	v, err := p.c.Versions.ManifestVersion(ctx)
	if err != nil {
		return p.versionFailed(ctx, err)
	}
	p.version = v
	return true
}

func (p *Pipeline) syncChangelog(ctx context.Context) bool {
	v, err := p.c.Versions.SyncChangelog(ctx, p.version)
	if err != nil {
		return p.versionFailed(ctx, err)
	}
	p.version = v
	return true
}

func (p *Pipeline) resolveTag(ctx context.Context) bool {
	v, err := p.c.Versions.ResolveTag(ctx, p.version)
	if err != nil {
		return p.versionFailed(ctx, err)
	}
	p.version = v
	return true
}

func (p *Pipeline) versionFailed(ctx context.Context, err error) bool {
	p.c.UI.Fail("%v", err)
	p.c.Logger.Error(ctx, "version reconciliation failed", zap.Error(err))
	return false
}

func (p *Pipeline) pack(ctx context.Context) bool {
	a, ok := p.c.Publisher.Package(ctx)
	if ok {
		p.artifact = a
	}
	return ok
}

func (p *Pipeline) confirm(context.Context) bool {
	if p.c.Publisher.ConfirmPublish(p.version, p.artifact) {
		return true
	}
	p.c.UI.Warn("Publish cancelled.")
	return false
}

func (p *Pipeline) finalize(ctx context.Context) bool {
	if err := p.c.Versions.Finalize(ctx, p.version, p.c.Now()); err != nil {
		p.c.UI.Fail("%v", err)
		p.c.Logger.Error(ctx, "changelog finalization failed", zap.Error(err))
		return false
	}
	return true
}

// release creates the release record. The upload already happened, so a
// failure here is a warning on a passed step.
func (p *Pipeline) release(ctx context.Context) bool {
	notes := "Release " + p.version.String()
	if cl, err := version.LoadChangelog(p.c.Versions.Changelog); err == nil {
		notes = cl.Notes(p.version)
	}

	url, err := p.c.Publisher.CreateRelease(ctx, p.version, p.artifact, notes)
	p.releaseURL, p.releaseErr = url, err
	switch {
	case err == nil:
	case url != "":
		p.c.Recorder.Warn("release record created without the artifact: " + err.Error())
		p.c.UI.Warn("Marketplace publish succeeded; attach %s to %s manually.", p.artifact.Name(), url)
	case errors.Is(err, publish.ErrReleaseExists):
		p.c.Recorder.Warn("release record already exists: " + err.Error())
		p.c.UI.Warn("Marketplace publish succeeded; a GitHub release for %s already exists.", p.version.Tag())
	default:
		p.c.Recorder.Warn("release record not created: " + err.Error())
		p.c.UI.Warn("Marketplace publish succeeded; create the GitHub release for %s manually.", p.version.Tag())
	}
	return true
}

// OfferInstall offers to install the analyzed artifact into the local
// editor. It does nothing for publish runs or when packaging did not happen.
func (p *Pipeline) OfferInstall(ctx context.Context) bool {
	if !p.opts.AnalyzeOnly || p.artifact == nil {
		return false
	}
	if !p.opts.AutoConfirm {
		p.c.Publisher.PrintInstallInstructions(p.artifact)
	}
	return p.c.Publisher.OfferInstall(ctx, p.artifact)
}
