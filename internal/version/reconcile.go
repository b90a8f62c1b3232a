package version

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
)

var (
	// ErrBumpDeclined indicates the operator refused a patch bump.
	ErrBumpDeclined = errors.New("version already tagged and bump declined")

	// ErrBumpLimit indicates too many consecutive tags were already taken.
	ErrBumpLimit = errors.New("too many consecutive tagged versions")
)

// DefaultMaxBumps bounds the auto-bump loop.
const DefaultMaxBumps = 20

// TagChecker reports whether a tag exists.
type TagChecker interface {
	TagExists(ctx context.Context, tag string) (bool, error)
}

// Reconciler resolves the release version. Each phase is exposed on its
// own so the pipeline can record them as separate steps.
type Reconciler struct {
	Manifest  Manifest
	Changelog string
	Tags      TagChecker
	Confirm   ui.Confirmer
	UI        ui.Formatter
	Logger    *logging.Logger
	MaxBumps  int
}

func (r *Reconciler) log() *logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

func (r *Reconciler) maxBumps() int {
	if r.MaxBumps <= 0 {
		return DefaultMaxBumps
	}
	return r.MaxBumps
}

func (r *Reconciler) manifestName() string {
	return filepath.Base(r.Manifest.Path)
}

func (r *Reconciler) changelogName() string {
	return filepath.Base(r.Changelog)
}

// ManifestVersion reads and validates the manifest version.
func (r *Reconciler) ManifestVersion(ctx context.Context) (Version, error) {
	v, err := r.Manifest.ReadVersion()
	if err != nil {
		return Version{}, err
	}
	r.UI.OK("%s version: %s", r.manifestName(), v)
	return v, nil
}

// SyncChangelog checks the pending changelog section against v. When the
// pending heading names another version the manifest is rewritten to it.
func (r *Reconciler) SyncChangelog(ctx context.Context, v Version) (Version, error) {
	cl, err := LoadChangelog(r.Changelog)
	if err != nil {
		return v, err
	}
	cv, versioned, err := cl.PendingVersion()
	if err != nil {
		return v, err
	}
	if !versioned {
		r.UI.OK("%s has an [Unreleased] section", r.changelogName())
		return v, nil
	}
	if cv == v {
		r.UI.OK("%s pending section matches %s", r.changelogName(), v)
		return v, nil
	}

	if _, err := r.Manifest.WriteVersion(cv); err != nil {
		return v, err
	}
	r.log().Info(ctx, "manifest version aligned with changelog",
		zap.Stringer("from", v), zap.Stringer("to", cv))
	r.UI.Fix("%s: %s -> %s (from %s)", r.manifestName(), v, cv, r.changelogName())
	return cv, nil
}

// ResolveTag bumps the patch version, with confirmation, until its tag is
// free. A changed version is written to the manifest and the pending
// changelog heading.
func (r *Reconciler) ResolveTag(ctx context.Context, v Version) (Version, error) {
	original := v
	for bumps := 0; ; bumps++ {
		taken, err := r.Tags.TagExists(ctx, v.Tag())
		if err != nil {
			return original, fmt.Errorf("checking tag %s: %w", v.Tag(), err)
		}
		if !taken {
			break
		}
		if bumps >= r.maxBumps() {
			return original, fmt.Errorf("%w: %d bumps from %s", ErrBumpLimit, bumps, original)
		}
		next := v.BumpPatch()
		r.UI.Warn("Tag '%s' already exists.", v.Tag())
		if !r.Confirm.Ask(fmt.Sprintf("Bump to %s?", next), true) {
			return original, fmt.Errorf("%w: %s", ErrBumpDeclined, v.Tag())
		}
		v = next
	}

	if v != original {
		if err := r.persist(ctx, original, v); err != nil {
			return original, err
		}
	}
	r.UI.OK("Tag '%s' is available", v.Tag())
	return v, nil
}

// persist writes a bumped version. The changelog is loaded and edited in
// memory first, so a changelog that cannot take the new version leaves the
// manifest untouched.
func (r *Reconciler) persist(ctx context.Context, from, to Version) error {
	cl, err := LoadChangelog(r.Changelog)
	if err != nil {
		return err
	}
	changed, err := cl.SetPendingVersion(to)
	if err != nil {
		return err
	}

	if _, err := r.Manifest.WriteVersion(to); err != nil {
		return err
	}
	if changed {
		if err := cl.Save(r.Changelog); err != nil {
			if _, rerr := r.Manifest.WriteVersion(from); rerr != nil {
				return errors.Join(err, fmt.Errorf("restoring %s to %s: %w", r.manifestName(), from, rerr))
			}
			return err
		}
	}

	r.UI.Fix("%s: %s -> %s", r.manifestName(), from, to)
	if changed {
		r.UI.Fix("%s: pending section -> [%s]", r.changelogName(), to)
	}
	r.log().Info(ctx, "version bumped", zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// Reconcile runs all phases in order.
func (r *Reconciler) Reconcile(ctx context.Context) (Version, error) {
	v, err := r.ManifestVersion(ctx)
	if err != nil {
		return v, err
	}
	if v, err = r.SyncChangelog(ctx, v); err != nil {
		return v, err
	}
	return r.ResolveTag(ctx, v)
}

// Finalize stamps the pending changelog section with date. It is the only
// changelog rewrite in the publish phase.
func (r *Reconciler) Finalize(ctx context.Context, v Version, date time.Time) error {
	cl, err := LoadChangelog(r.Changelog)
	if err != nil {
		return err
	}
	day := date.Format("2006-01-02")
	if err := cl.Stamp(v, day); err != nil {
		return err
	}
	if err := cl.Save(r.Changelog); err != nil {
		return err
	}
	r.UI.OK("%s: [%s] - %s", r.changelogName(), v, day)
	return nil
}
