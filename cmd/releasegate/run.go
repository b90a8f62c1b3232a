package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/releasegate/internal/checks"
	"github.com/fyrsmithlabs/releasegate/internal/config"
	"github.com/fyrsmithlabs/releasegate/internal/exitcode"
	"github.com/fyrsmithlabs/releasegate/internal/git"
	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/pipeline"
	"github.com/fyrsmithlabs/releasegate/internal/publish"
	"github.com/fyrsmithlabs/releasegate/internal/report"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/steplog"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
	"github.com/fyrsmithlabs/releasegate/internal/version"
)

const marketplaceItemURL = "https://marketplace.visualstudio.com/items?itemName="

// options are the command-line flags.
type options struct {
	AnalyzeOnly        bool
	SkipTests          bool
	SkipExtensions     bool
	SkipGlobalPackages bool
	AutoConfirm        bool
	NoLogo             bool
	Verbose            bool
	NoColor            bool
	ConfigFile         string
	ProjectDir         string
}

// app is one CLI invocation. The runner, confirmer and clock are replaced
// in tests; nil means the real thing.
type app struct {
	opts   options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	runner  runner.Runner
	confirm ui.Confirmer
	now     func() time.Time

	code exitcode.Code
}

func (a *app) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// project holds the identity values shown in summaries and reports.
type project struct {
	Name           string
	Publisher      string
	ExtensionID    string
	RepoURL        string
	MarketplaceURL string
}

func describeProject(cfg *config.Config) project {
	m := version.Manifest{Path: cfg.Path(cfg.Project.Manifest)}
	p := project{
		Name:           cfg.Project.Name,
		Publisher:      cfg.Publish.Publisher,
		RepoURL:        cfg.Project.RepoURL,
		MarketplaceURL: cfg.Project.MarketplaceURL,
	}
	if p.Name == "" {
		p.Name = m.Field("name")
	}
	if p.Name == "" {
		p.Name = filepath.Base(cfg.Project.Root)
	}
	if p.Publisher == "" {
		p.Publisher = m.Field("publisher")
	}
	if p.Publisher != "" {
		p.ExtensionID = p.Publisher + "." + p.Name
		if p.MarketplaceURL == "" {
			p.MarketplaceURL = marketplaceItemURL + p.ExtensionID
		}
	}
	if p.RepoURL == "" {
		if owner, repo, err := git.RemoteRepository(cfg.Project.Root, cfg.Publish.Remote); err == nil {
			p.RepoURL = "https://github.com/" + owner + "/" + repo
		}
	}
	return p
}

func checkSettings(cfg *config.Config, publisher string) checks.Settings {
	s := checks.DefaultSettings()
	s.MinNodeMajor = cfg.Prerequisites.MinNodeMajor
	s.AuthTimeout = cfg.Prerequisites.AuthTimeout.Duration()
	s.Publisher = publisher
	s.GlobalPackages = cfg.Environment.GlobalPackages
	s.EditorExtensions = cfg.Environment.EditorExtensions
	s.InstallCommand = cfg.Build.InstallCommand.Argv()
	s.CompileCommand = cfg.Build.CompileCommand.Argv()
	s.TestCommand = cfg.Build.TestCommand.Argv()
	s.Manifest = cfg.Project.Manifest
	s.SourceDir = cfg.Quality.SourceDir
	s.SourceExts = cfg.Quality.Extensions
	s.MaxFileLines = cfg.Quality.MaxFileLines
	s.IgnoreFiles = cfg.Quality.IgnoreFiles
	return s
}

func publishSettings(cfg *config.Config, p project) publish.Settings {
	s := publish.DefaultSettings()
	s.PackageCommand = cfg.Build.PackageCommand.Argv()
	s.ArtifactGlob = cfg.Build.ArtifactGlob
	s.UploadCommand = cfg.Publish.UploadCommand.Argv()
	s.ExtensionID = p.ExtensionID
	s.RepoURL = p.RepoURL
	s.Remote = cfg.Publish.Remote
	return s
}

func newLogger(cfg *config.Config, verbose bool) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	if cfg.Logging.File != "" {
		lc.Output.File = cfg.Path(cfg.Logging.File)
	}
	return logging.NewLogger(lc)
}

// newReleaser picks the release record provider. The API provider needs
// owner/repo, taken from the config or the remote URL.
func newReleaser(ctx context.Context, cfg *config.Config, r runner.Runner, logger *logging.Logger) (publish.Releaser, error) {
	if cfg.Release.Provider != config.ProviderAPI {
		return &publish.CLIReleaser{Runner: r, Dir: cfg.Project.Root}, nil
	}

	owner, repo := cfg.Release.Owner, cfg.Release.Repo
	if owner == "" || repo == "" {
		o, rp, err := git.RemoteRepository(cfg.Project.Root, cfg.Publish.Remote)
		if err != nil {
			return nil, fmt.Errorf("cannot determine GitHub repository (set release.owner and release.repo): %w", err)
		}
		if owner == "" {
			owner = o
		}
		if repo == "" {
			repo = rp
		}
	}
	client, err := publish.NewGitHubClient(ctx, cfg.Release.Token)
	if err != nil {
		return nil, err
	}
	return &publish.APIReleaser{
		Client: client,
		Owner:  owner,
		Repo:   repo,
		Retry:  publish.DefaultRetryPolicy(),
		Logger: logger.Named("release"),
	}, nil
}

// confirmer returns the prompt for this run and a function releasing it.
// Interrupts are caught for the whole run: during a question they select
// the default answer, and a running child process dies from the terminal's
// own SIGINT so its step fails normally.
func (a *app) confirmer(console ui.Formatter) (ui.Confirmer, func()) {
	if a.confirm != nil {
		return a.confirm, func() {}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	if a.opts.AutoConfirm {
		return ui.Auto{UI: console}, func() { signal.Stop(sig) }
	}

	echo := true
	if f, ok := a.stdin.(*os.File); ok {
		echo = !ui.IsTerminal(f)
	}
	p := ui.NewPrompt(a.stdin, a.stdout, ui.WithInterrupts(sig), ui.WithEcho(echo))
	return p, func() {
		signal.Stop(sig)
		p.Close()
	}
}

func (a *app) run(ctx context.Context) exitcode.Code {
	colorOpt := ui.WithNoColor(a.opts.NoColor)
	console := ui.NewConsole(a.stdout, colorOpt)
	ui.Banner(a.stdout, buildVersion, !a.opts.NoLogo, colorOpt)

	cfg, err := config.Load(config.LoadOptions{ProjectDir: a.opts.ProjectDir, File: a.opts.ConfigFile})
	if err != nil {
		console.Fail("Configuration: %v", err)
		return exitcode.PrerequisiteFailed
	}
	logger, err := newLogger(cfg, a.opts.Verbose)
	if err != nil {
		console.Fail("Logging: %v", err)
		return exitcode.PrerequisiteFailed
	}
	defer logger.Close()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithLogger(ctx, logger)

	proj := describeProject(cfg)
	mode := report.Publish
	if a.opts.AnalyzeOnly {
		mode = report.Analyze
	}
	logger.Info(ctx, "run started",
		zap.String("project", proj.Name),
		zap.String("root", cfg.Project.Root),
		zap.String("mode", string(mode)))

	r := a.runner
	if r == nil {
		r = runner.NewExec(logger.Named("runner"))
	}
	confirm, stopPrompt := a.confirmer(console)
	defer stopPrompt()

	var rel publish.Releaser
	if !a.opts.AnalyzeOnly {
		rel, err = newReleaser(ctx, cfg, r, logger)
		if err != nil {
			console.Fail("Release provider: %v", err)
			return exitcode.PrerequisiteFailed
		}
	}

	sink := &report.Sink{Dir: cfg.Path(cfg.Project.ReportsDir), Project: proj.Name, Now: a.now}
	var p *pipeline.Pipeline
	record := func(outcome string) report.Run {
		run := report.Run{ID: runID, Kind: mode, Outcome: outcome, MarketplaceURL: proj.MarketplaceURL}
		if p != nil {
			if v := p.Version(); !v.IsZero() {
				run.Version = v.String()
			}
			if art := p.Artifact(); art != nil {
				run.ArtifactPath, run.ArtifactSize = art.Path, art.Size
			}
			run.ReleaseURL = p.ReleaseURL()
		}
		return run
	}

	rec := steplog.New(steplog.WithPanicHook(func(entries []steplog.Entry) {
		run := record("crashed")
		run.Entries = entries
		if path, err := sink.Save(run); err == nil {
			fmt.Fprintf(a.stderr, "partial report saved: %s\n", path)
		}
	}))

	guard := &git.Guard{
		Runner:  r,
		Dir:     cfg.Project.Root,
		Remote:  cfg.Publish.Remote,
		UI:      console,
		Confirm: confirm,
		Logger:  logger.Named("git"),
	}
	p = pipeline.Release(pipeline.Options{
		AnalyzeOnly:        a.opts.AnalyzeOnly,
		SkipTests:          a.opts.SkipTests,
		SkipExtensions:     a.opts.SkipExtensions,
		SkipGlobalPackages: a.opts.SkipGlobalPackages,
		AutoConfirm:        a.opts.AutoConfirm,
	}, pipeline.Collaborators{
		Checks: &checks.Checks{
			Runner:   r,
			UI:       console,
			Logger:   logger.Named("checks"),
			Dir:      cfg.Project.Root,
			Settings: checkSettings(cfg, proj.Publisher),
		},
		Guard: guard,
		Versions: &version.Reconciler{
			Manifest:  version.Manifest{Path: cfg.Path(cfg.Project.Manifest)},
			Changelog: cfg.Path(cfg.Project.Changelog),
			Tags:      guard,
			Confirm:   confirm,
			UI:        console,
			Logger:    logger.Named("version"),
			MaxBumps:  cfg.Version.MaxBumps,
		},
		Publisher: &publish.Publisher{
			Runner:   r,
			Repo:     guard,
			UI:       console,
			Confirm:  confirm,
			Logger:   logger.Named("publish"),
			Releaser: rel,
			Dir:      cfg.Project.Root,
			Settings: publishSettings(cfg, proj),
		},
		Recorder: rec,
		UI:       console,
		Logger:   logger,
		Now:      a.clock,
	})

	out := p.Run(ctx)
	entries := rec.Entries()
	code := exitcode.Resolve(entries)

	report.PrintTiming(console, entries)
	run := record(out.String())
	run.Entries = entries
	if path, err := sink.Save(run); err != nil {
		console.Warn("Could not save report: %v", err)
		logger.Error(ctx, "report not saved", zap.Error(err))
	} else {
		console.Info("Report saved: %s", path)
	}

	a.summarize(console, out, code, p, proj)
	logger.Info(ctx, "run finished",
		zap.Stringer("outcome", out.Kind),
		zap.String("step", out.Step),
		zap.Int("exit_code", code.Int()))

	if out.Kind == pipeline.Success {
		p.OfferInstall(ctx)
	}
	return code
}

func (a *app) summarize(console *ui.Console, out pipeline.Outcome, code exitcode.Code, p *pipeline.Pipeline, proj project) {
	console.Heading("Result")
	switch out.Kind {
	case pipeline.Success:
		if a.opts.AnalyzeOnly {
			if art := p.Artifact(); art != nil {
				console.OK("Analysis passed: %s is ready (%s)", art.Name(), p.Version().Tag())
			}
			return
		}
		console.OK("Published %s", p.Version().Tag())
		if proj.MarketplaceURL != "" {
			console.Info("Marketplace: %s", proj.MarketplaceURL)
		}
		tag := p.Version().Tag()
		switch url := p.ReleaseURL(); {
		case url != "" && p.ReleaseErr() == nil:
			console.Info("GitHub release: %s", url)
		case url != "":
			console.Warn("GitHub release %s was created without the artifact. Attach it manually:", url)
			if art := p.Artifact(); art != nil {
				console.Detail(fmt.Sprintf("gh release upload %s %s", tag, art.Path))
			}
		case errors.Is(p.ReleaseErr(), publish.ErrReleaseExists):
			console.Warn("A GitHub release for %s already existed and was left unchanged.", tag)
		default:
			console.Warn("GitHub release for %s was NOT created. Create it manually:", tag)
			console.Detail(fmt.Sprintf("gh release create %s --title %s", tag, tag))
		}
	case pipeline.Cancelled:
		console.Warn("Cancelled at %s. Nothing was published.", out.Step)
	default:
		console.Fail("Stopped at %s (exit code %d: %s)", out.Step, code.Int(), code)
	}
}
