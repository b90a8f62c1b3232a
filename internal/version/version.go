// Package version keeps the release version consistent across the package
// manifest, the changelog and the tag namespace.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion indicates a missing or malformed version string.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a release version. Pre-release and build metadata are not
// part of the release scheme and are rejected by Parse.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Parse parses a strict X.Y.Z version.
func Parse(s string) (Version, error) {
	sv, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("%w: %q: pre-release and build metadata are not supported", ErrInvalidVersion, s)
	}
	return Version{Major: sv.Major(), Minor: sv.Minor(), Patch: sv.Patch()}, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// BumpPatch returns the next patch version.
func (v Version) BumpPatch() Version {
	next := semver.New(v.Major, v.Minor, v.Patch, "", "").IncPatch()
	return Version{Major: next.Major(), Minor: next.Minor(), Patch: next.Patch()}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Tag returns the release tag name, e.g. v1.2.3.
func (v Version) Tag() string {
	return "v" + v.String()
}

// IsZero reports whether v is the zero value.
func (v Version) IsZero() bool {
	return v == Version{}
}
