package git

import (
	"errors"
	"fmt"
	"regexp"

	gogit "github.com/go-git/go-git/v5"
)

var (
	// ErrNoRemote indicates the named remote is not configured.
	ErrNoRemote = errors.New("remote not configured")

	// ErrNotGitHub indicates the remote URL is not a GitHub repository.
	ErrNotGitHub = errors.New("remote is not a GitHub repository")
)

// git@github.com:owner/repo.git, ssh://git@github.com/owner/repo,
// https://github.com/owner/repo.git, https://token@github.com/owner/repo
var githubURL = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`)

// RemoteRepository returns the GitHub owner and repository name of remote
// in the repository at dir.
func RemoteRepository(dir, remote string) (owner, repo string, err error) {
	r, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrNotGitRepo, dir, err)
	}

	rem, err := r.Remote(remote)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrNoRemote, remote)
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", "", fmt.Errorf("%w: %s has no URL", ErrNoRemote, remote)
	}
	return ParseGitHubURL(urls[0])
}

// ParseGitHubURL extracts owner and repository from a GitHub remote URL.
func ParseGitHubURL(url string) (owner, repo string, err error) {
	m := githubURL.FindStringSubmatch(url)
	if len(m) != 3 {
		return "", "", fmt.Errorf("%w: %s", ErrNotGitHub, url)
	}
	return m[1], m[2], nil
}
