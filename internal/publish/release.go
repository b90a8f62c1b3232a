package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/releasegate/internal/config"
	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/secrets"
)

// ErrReleaseFailed indicates the release record could not be created.
var ErrReleaseFailed = errors.New("release creation failed")

// Release describes a hosted release record for a tag.
type Release struct {
	Tag   string
	Title string
	Notes string

	// Asset is the absolute path of the file attached to the release.
	Asset string
}

// Releaser creates release records. It returns the release URL when the
// provider reports one.
type Releaser interface {
	CreateRelease(ctx context.Context, rel Release) (string, error)
}

// CLIReleaser creates releases with the gh CLI, using whatever credentials
// gh is logged in with.
type CLIReleaser struct {
	Runner runner.Runner
	Dir    string
}

// CreateRelease runs `gh release create`.
func (r *CLIReleaser) CreateRelease(ctx context.Context, rel Release) (string, error) {
	argv := []string{"gh", "release", "create", rel.Tag}
	if rel.Asset != "" {
		argv = append(argv, rel.Asset)
	}
	argv = append(argv, "--title", rel.Title, "--notes", rel.Notes)

	res, err := r.Runner.Run(ctx, runner.Cmd(argv...).In(r.Dir))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}
	if !res.OK() {
		msg := secrets.Redact(strings.TrimSpace(res.Stderr))
		if strings.Contains(msg, "already exists") {
			return "", fmt.Errorf("%w: %w: %s", ErrReleaseFailed, ErrReleaseExists, msg)
		}
		return "", fmt.Errorf("%w: %s", ErrReleaseFailed, msg)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// NewGitHubClient creates a GitHub client with proper authentication.
func NewGitHubClient(ctx context.Context, token config.Secret) (*github.Client, error) {
	if !token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	tc := oauth2.NewClient(ctx, ts)
	return github.NewClient(tc), nil
}

// APIReleaser creates releases through the GitHub REST API and uploads the
// asset to them. Transient failures and rate limits are retried.
type APIReleaser struct {
	Client *github.Client
	Owner  string
	Repo   string
	Retry  *RetryPolicy
	Logger *logging.Logger
}

func (r *APIReleaser) log() *logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

// CreateRelease creates the release, then uploads the asset. When only the
// upload fails the release URL is returned along with the error.
func (r *APIReleaser) CreateRelease(ctx context.Context, rel Release) (string, error) {
	var created *github.RepositoryRelease
	err := withRetry(ctx, r.Retry, r.log(), "create release", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		created, resp, err = r.Client.Repositories.CreateRelease(ctx, r.Owner, r.Repo, &github.RepositoryRelease{
			TagName: github.String(rel.Tag),
			Name:    github.String(rel.Title),
			Body:    github.String(rel.Notes),
		})
		return resp, err
	})
	if alreadyExists(err) {
		return "", fmt.Errorf("%w: %s: %w", ErrReleaseFailed, rel.Tag, ErrReleaseExists)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}
	r.log().Info(ctx, "release created",
		zap.String("tag", rel.Tag),
		zap.Int64("release_id", created.GetID()),
	)

	if rel.Asset != "" {
		if err := r.uploadAsset(ctx, created.GetID(), rel.Asset); err != nil {
			return created.GetHTMLURL(), fmt.Errorf("%w: uploading %s: %w", ErrReleaseFailed, filepath.Base(rel.Asset), err)
		}
	}
	return created.GetHTMLURL(), nil
}

func (r *APIReleaser) uploadAsset(ctx context.Context, id int64, path string) error {
	name := filepath.Base(path)
	return withRetry(ctx, r.Retry, r.log(), "upload "+name, func() (*github.Response, error) {
		// each attempt needs a fresh reader
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		_, resp, err := r.Client.Repositories.UploadReleaseAsset(ctx, r.Owner, r.Repo, id, &github.UploadOptions{Name: name}, f)
		return resp, err
	})
}
