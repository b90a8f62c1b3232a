package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/ignore"
)

// Violation is a source file over the line limit.
type Violation struct {
	Path  string
	Lines int
}

// LineLimits reports source files longer than the configured limit. Each
// offending file becomes a warning on the step; the step itself passes.
func (c *Checks) LineLimits(ctx context.Context) bool {
	limit := c.Settings.MaxFileLines
	violations, err := c.FindViolations()
	if err != nil {
		c.UI.Fail("Cannot scan %s: %v", c.Settings.SourceDir, err)
		c.log().Error(ctx, "line limit scan failed", zap.Error(err))
		return false
	}
	if len(violations) == 0 {
		c.UI.OK("All %s files are within the %d-line limit", strings.Join(c.Settings.SourceExts, "/"), limit)
		return true
	}

	c.UI.Warn("%d file(s) exceed %d-line limit:", len(violations), limit)
	for _, v := range violations {
		c.UI.Detail(fmt.Sprintf("%s (%d lines)", v.Path, v.Lines))
		if c.Warn != nil {
			c.Warn(fmt.Sprintf("%s exceeds %d-line limit (%d lines)", v.Path, limit, v.Lines))
		}
	}
	return true
}

// FindViolations walks the source directory. A missing source directory has
// no violations. Paths are relative to the project directory, slash
// separated, and sorted.
func (c *Checks) FindViolations() ([]Violation, error) {
	limit := c.Settings.MaxFileLines
	if limit <= 0 {
		return nil, nil
	}
	root := c.path(c.Settings.SourceDir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	ignored, err := ignore.Load(c.Dir, c.Settings.IgnoreFiles...)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}

	var out []Violation
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(c.Dir, p)
		if relErr == nil && rel != "." && ignored.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.hasSourceExt(p) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if n := countLines(data); n > limit {
			if relErr != nil {
				rel = p
			}
			out = append(out, Violation{Path: filepath.ToSlash(rel), Lines: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *Checks) hasSourceExt(p string) bool {
	ext := filepath.Ext(p)
	for _, want := range c.Settings.SourceExts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// countLines counts newline-terminated lines plus a trailing unterminated one.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
