package publish

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/releasegate/internal/git"
	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/runner/runnertest"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
	"github.com/fyrsmithlabs/releasegate/internal/version"
)

type harness struct {
	pub     *Publisher
	fake    *runnertest.Fake
	confirm *ui.Scripted
	out     *bytes.Buffer
}

func newHarness(t *testing.T, answers ...bool) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		fake:    runnertest.New(),
		confirm: ui.NewScripted(answers...),
		out:     &bytes.Buffer{},
	}
	console := ui.NewConsole(h.out, ui.WithNoColor(true))
	settings := DefaultSettings()
	settings.ExtensionID = "acme.ext"
	h.pub = &Publisher{
		Runner:   h.fake,
		Repo:     &git.Guard{Runner: h.fake, Dir: dir, UI: console, Confirm: h.confirm},
		UI:       console,
		Confirm:  h.confirm,
		Releaser: &CLIReleaser{Runner: h.fake, Dir: dir},
		Dir:      dir,
		Settings: settings,
	}
	return h
}

func (h *harness) writeArtifact(t *testing.T, name string, size int, mod time.Time) string {
	t.Helper()
	p := filepath.Join(h.pub.Dir, name)
	require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{'x'}, size), 0o644))
	require.NoError(t, os.Chtimes(p, mod, mod))
	return p
}

const packageArgv = "npx @vscode/vsce package --no-dependencies"

func TestPackage_PicksNewestArtifact(t *testing.T) {
	h := newHarness(t)
	old := time.Now().Add(-time.Hour)
	h.writeArtifact(t, "ext-1.0.0.vsix", 10, old)
	h.fake.On(packageArgv, runnertest.Response{Do: func(runner.Command) {
		h.writeArtifact(t, "ext-1.0.1.vsix", 3*1024, time.Now())
	}})

	a, ok := h.pub.Package(context.Background())

	require.True(t, ok)
	assert.Equal(t, "ext-1.0.1.vsix", a.Name())
	assert.Equal(t, int64(3*1024), a.Size)
	assert.True(t, filepath.IsAbs(a.Path))
	assert.Contains(t, h.out.String(), "Created: ext-1.0.1.vsix (3 KB)")
}

func TestPackage_Failures(t *testing.T) {
	t.Run("command fails", func(t *testing.T) {
		h := newHarness(t)
		h.fake.Fail(packageArgv, 1, "ERROR  Make sure to edit the README.md file")

		a, ok := h.pub.Package(context.Background())
		assert.False(t, ok)
		assert.Nil(t, a)
		assert.Contains(t, h.out.String(), "README.md")
	})

	t.Run("no artifact produced", func(t *testing.T) {
		h := newHarness(t)
		h.fake.OK(packageArgv, "")

		_, ok := h.pub.Package(context.Background())
		assert.False(t, ok)
		assert.Contains(t, h.out.String(), "no artifact found")
	})
}

func TestNewestArtifact_IgnoresDirectories(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Mkdir(filepath.Join(h.pub.Dir, "dir.vsix"), 0o755))

	_, err := h.pub.NewestArtifact()
	assert.True(t, errors.Is(err, ErrNoArtifact))
}

func TestConfirmPublish(t *testing.T) {
	v := version.MustParse("1.2.3")

	h := newHarness(t, true)
	assert.True(t, h.pub.ConfirmPublish(v, &Artifact{Path: "/x/ext.vsix", Size: 2048}))
	assert.Equal(t, []string{"Proceed with publish?"}, h.confirm.Questions())
	out := h.out.String()
	assert.Contains(t, out, "Create git tag v1.2.3")
	assert.Contains(t, out, "acme.ext")
	assert.Contains(t, out, "irreversible")

	h = newHarness(t, false)
	assert.False(t, h.pub.ConfirmPublish(v, nil))
}

func TestCommitAndPush(t *testing.T) {
	v := version.MustParse("1.2.3")

	t.Run("commits and pushes current branch", func(t *testing.T) {
		h := newHarness(t)
		h.fake.OK("git add -A", "")
		h.fake.OK("git status --porcelain", " M CHANGELOG.md\n")
		h.fake.OK("git commit -m release: v1.2.3", "")
		h.fake.OK("git rev-parse --abbrev-ref HEAD", "release/1.x\n")
		h.fake.OK("git push origin release/1.x", "")

		assert.True(t, h.pub.CommitAndPush(context.Background(), v))
		assert.Contains(t, h.out.String(), "Pushed to origin/release/1.x")
	})

	t.Run("nothing to commit still pushes", func(t *testing.T) {
		h := newHarness(t)
		h.fake.OK("git add -A", "")
		h.fake.OK("git status --porcelain", "")
		h.fake.OK("git rev-parse --abbrev-ref HEAD", "main\n")
		h.fake.OK("git push origin main", "")

		assert.True(t, h.pub.CommitAndPush(context.Background(), v))
		assert.Equal(t, 0, h.fake.Called("git commit -m release: v1.2.3"))
		assert.Contains(t, h.out.String(), "No changes to commit")
	})

	t.Run("push rejected", func(t *testing.T) {
		h := newHarness(t)
		h.fake.OK("git add -A", "")
		h.fake.OK("git status --porcelain", "")
		h.fake.OK("git rev-parse --abbrev-ref HEAD", "main\n")
		h.fake.Fail("git push origin main", 1, "! [rejected] main -> main (fetch first)")

		assert.False(t, h.pub.CommitAndPush(context.Background(), v))
		assert.Contains(t, h.out.String(), "git push failed")
	})
}

func TestTag(t *testing.T) {
	v := version.MustParse("1.2.3")

	h := newHarness(t)
	h.fake.OK("git tag -a v1.2.3 -m Release 1.2.3", "")
	h.fake.OK("git push origin v1.2.3", "")
	assert.True(t, h.pub.Tag(context.Background(), v))

	h = newHarness(t)
	h.fake.Fail("git tag -a v1.2.3 -m Release 1.2.3", 128, "fatal: tag 'v1.2.3' already exists")
	assert.False(t, h.pub.Tag(context.Background(), v))
	assert.Equal(t, 0, h.fake.Called("git push origin v1.2.3"))
}

func TestUpload(t *testing.T) {
	a := &Artifact{Path: "/abs/ext-1.2.3.vsix"}

	h := newHarness(t)
	h.fake.OK("npx @vscode/vsce publish --packagePath /abs/ext-1.2.3.vsix", "DONE")
	assert.True(t, h.pub.Upload(context.Background(), a))

	h = newHarness(t)
	h.fake.Fail("npx @vscode/vsce publish --packagePath /abs/ext-1.2.3.vsix", 1, "401 Unauthorized")
	assert.False(t, h.pub.Upload(context.Background(), a))
	assert.Contains(t, h.out.String(), "401 Unauthorized")

	pat := strings.Repeat("k2m7", 13)
	h = newHarness(t)
	h.fake.Fail("npx @vscode/vsce publish --packagePath /abs/ext-1.2.3.vsix", 1, "ERROR  Access Denied: token "+pat+" is not valid")
	assert.False(t, h.pub.Upload(context.Background(), a))
	assert.Contains(t, h.out.String(), "Access Denied")
	assert.NotContains(t, h.out.String(), pat, "tokens echoed by vsce are redacted")

	assert.False(t, h.pub.Upload(context.Background(), nil))
}

func TestCreateRelease(t *testing.T) {
	v := version.MustParse("1.2.3")
	a := &Artifact{Path: "/abs/ext.vsix"}
	const argv = "gh release create v1.2.3 /abs/ext.vsix --title v1.2.3 --notes notes"

	h := newHarness(t)
	h.fake.OK(argv, "https://github.com/acme/ext/releases/tag/v1.2.3")
	u, err := h.pub.CreateRelease(context.Background(), v, a, "notes")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/ext/releases/tag/v1.2.3", u)

	h = newHarness(t)
	h.fake.Fail(argv, 1, "HTTP 401")
	_, err = h.pub.CreateRelease(context.Background(), v, a, "notes")
	require.Error(t, err)
	assert.Contains(t, h.out.String(), "unset GITHUB_TOKEN")

	h = newHarness(t)
	h.pub.Releaser = nil
	_, err = h.pub.CreateRelease(context.Background(), v, a, "notes")
	assert.ErrorIs(t, err, ErrReleaseFailed)
}

func TestOfferInstall(t *testing.T) {
	a := &Artifact{Path: "/abs/ext.vsix"}

	t.Run("accepted", func(t *testing.T) {
		h := newHarness(t, true)
		h.fake.OK("code --install-extension /abs/ext.vsix", "")
		assert.True(t, h.pub.OfferInstall(context.Background(), a))
		assert.Equal(t, []string{"Install via CLI now?"}, h.confirm.Questions())
	})

	t.Run("declined", func(t *testing.T) {
		h := newHarness(t, false)
		assert.False(t, h.pub.OfferInstall(context.Background(), a))
		assert.Empty(t, h.fake.Calls())
	})

	t.Run("no code cli", func(t *testing.T) {
		h := newHarness(t, true)
		h.fake.Missing("code")
		assert.False(t, h.pub.OfferInstall(context.Background(), a))
		assert.Empty(t, h.confirm.Questions())
	})

	t.Run("install fails", func(t *testing.T) {
		h := newHarness(t, true)
		h.fake.Fail("code --install-extension /abs/ext.vsix", 1, "corrupt package")
		assert.False(t, h.pub.OfferInstall(context.Background(), a))
		assert.Contains(t, h.out.String(), "corrupt package")
	})
}

func TestPrintInstallInstructions(t *testing.T) {
	h := newHarness(t)
	h.pub.PrintInstallInstructions(&Artifact{Path: "/abs/ext.vsix"})
	assert.Contains(t, h.out.String(), "code --install-extension ext.vsix")
}
