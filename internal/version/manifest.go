package version

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Manifest is a package.json file. Edits touch only the edited value, so
// key order, indentation and the trailing newline survive.
type Manifest struct {
	Path string
}

func (m Manifest) read() ([]byte, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidVersion, filepath.Base(m.Path), err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidVersion, filepath.Base(m.Path))
	}
	return data, nil
}

// ReadVersion returns the manifest's version field.
func (m Manifest) ReadVersion() (Version, error) {
	data, err := m.read()
	if err != nil {
		return Version{}, err
	}
	field := gjson.GetBytes(data, "version")
	if !field.Exists() || field.Type != gjson.String {
		return Version{}, fmt.Errorf("%w: %s has no version string", ErrInvalidVersion, filepath.Base(m.Path))
	}
	return Parse(field.Str)
}

// Field returns a top-level string field such as name or publisher, or ""
// when the file or field is missing.
func (m Manifest) Field(key string) string {
	data, err := m.read()
	if err != nil {
		return ""
	}
	return gjson.GetBytes(data, gjson.Escape(key)).String()
}

// WriteVersion sets the version field. It reports whether the file changed
// and does not touch the file when the version is already v.
func (m Manifest) WriteVersion(v Version) (bool, error) {
	data, err := m.read()
	if err != nil {
		return false, err
	}
	if cur := gjson.GetBytes(data, "version"); cur.Type == gjson.String && cur.Str == v.String() {
		return false, nil
	}
	out, err := sjson.SetBytes(data, "version", v.String())
	if err != nil {
		return false, fmt.Errorf("setting version in %s: %w", filepath.Base(m.Path), err)
	}
	if err := writeFile(m.Path, out); err != nil {
		return false, err
	}
	return true, nil
}

// writeFile replaces path atomically, keeping its permissions.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
