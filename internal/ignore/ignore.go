// Package ignore reads gitignore-style files and matches project paths
// against them.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Matcher holds exclude patterns from one or more ignore files. The zero
// value ignores nothing.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	glob    string
	dirOnly bool
	// anchored patterns match from the project root only
	anchored bool
}

// Load reads the named ignore files from root. Missing files are skipped.
func Load(root string, files ...string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[pattern]bool)
	for _, name := range files {
		ps, err := parseFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				m.patterns = append(m.patterns, p)
			}
		}
	}
	return m, nil
}

// New builds a Matcher from pattern lines in gitignore syntax.
func New(lines ...string) *Matcher {
	m := &Matcher{}
	for _, l := range lines {
		if p, ok := parseLine(l); ok {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Ignored reports whether rel, a slash or OS separated path relative to the
// project root, is excluded. A path is also excluded when one of its parent
// directories is.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	parts := strings.Split(rel, "/")
	for i := range parts {
		sub := strings.Join(parts[:i+1], "/")
		subIsDir := isDir || i < len(parts)-1
		if m.matches(sub, subIsDir) {
			return true
		}
	}
	return false
}

func (m *Matcher) matches(rel string, isDir bool) bool {
	base := path.Base(rel)
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if !p.anchored {
			if ok, _ := path.Match(p.glob, base); ok {
				return true
			}
		}
		if ok, _ := path.Match(p.glob, rel); ok {
			return true
		}
	}
	return false
}

func parseFile(name string) ([]pattern, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if p, ok := parseLine(sc.Text()); ok {
			out = append(out, p)
		}
	}
	return out, sc.Err()
}

// parseLine converts one ignore file line. Blank lines, comments and
// negations yield nothing; negations are not supported.
func parseLine(line string) (pattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return pattern{}, false
	}

	var p pattern
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	line = strings.TrimPrefix(line, "**/")
	if strings.HasPrefix(line, "/") || strings.Contains(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	// "dir/**" excludes everything below dir, which the parent walk covers
	line = strings.TrimSuffix(line, "/**")
	if line == "" || line == "**" {
		return pattern{}, false
	}
	if _, err := path.Match(line, ""); err != nil {
		return pattern{}, false
	}
	p.glob = line
	return p, true
}
