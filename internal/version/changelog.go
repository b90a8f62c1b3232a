package version

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrNoPendingSection indicates the changelog has no pending section.
	ErrNoPendingSection = errors.New("no pending changelog section")

	// ErrAmbiguousPending indicates more than one pending section.
	ErrAmbiguousPending = errors.New("more than one pending changelog section")

	// ErrVersionMismatch indicates the pending section names another version.
	ErrVersionMismatch = errors.New("changelog version does not match")
)

// Marker classifies a section heading.
type Marker int

const (
	// Other is a heading that is neither pending nor dated, e.g. "## [1.0.0]".
	Other Marker = iota
	// Pending is "## [X.Y.Z] - Current".
	Pending
	// Unreleased is "## [Unreleased]", pending without a version.
	Unreleased
	// Dated is "## [X.Y.Z] - YYYY-MM-DD".
	Dated
)

func (m Marker) String() string {
	switch m {
	case Pending:
		return "pending"
	case Unreleased:
		return "unreleased"
	case Dated:
		return "dated"
	default:
		return "other"
	}
}

var (
	sectionStart = regexp.MustCompile(`^##\s+\[`)
	headingRe    = regexp.MustCompile(`^##\s+\[([^\]]*)\](?:\s+-\s+(.*?))?\s*$`)
	dateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Section is one "## [...]" block of the changelog.
type Section struct {
	Heading string
	Version string
	Marker  Marker
	Date    string
	// Body is the raw text after the heading line, up to the next section.
	Body string

	eol string
}

// IsPending reports whether the section is awaiting release.
func (s *Section) IsPending() bool {
	return s.Marker == Pending || s.Marker == Unreleased
}

func (s *Section) setHeading(h string) {
	s.Heading = h
	s.classify()
}

func (s *Section) classify() {
	s.Version, s.Date, s.Marker = "", "", Other
	m := headingRe.FindStringSubmatch(s.Heading)
	if m == nil {
		return
	}
	label, suffix := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if strings.EqualFold(label, "unreleased") {
		s.Marker = Unreleased
		return
	}
	s.Version = label
	switch {
	case strings.EqualFold(suffix, "current"):
		s.Marker = Pending
	case dateRe.MatchString(suffix):
		s.Marker = Dated
		s.Date = suffix
	}
}

// Changelog is a parsed CHANGELOG.md. Bytes reproduces the input exactly
// until a section is modified.
type Changelog struct {
	Preamble string
	Sections []*Section
}

// ParseChangelog splits text into a preamble and sections.
func ParseChangelog(text string) *Changelog {
	c := &Changelog{}
	var cur *Section
	var pre strings.Builder

	for len(text) > 0 {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i+1], text[i+1:]
		} else {
			text = ""
		}
		content := strings.TrimRight(line, "\r\n")

		if sectionStart.MatchString(content) {
			cur = &Section{Heading: content, eol: line[len(content):]}
			cur.classify()
			c.Sections = append(c.Sections, cur)
			continue
		}
		if cur == nil {
			pre.WriteString(line)
		} else {
			cur.Body += line
		}
	}
	c.Preamble = pre.String()
	return c
}

// LoadChangelog reads and parses a changelog file.
func LoadChangelog(path string) (*Changelog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}
	return ParseChangelog(string(data)), nil
}

// Save writes the changelog to path.
func (c *Changelog) Save(path string) error {
	return writeFile(path, c.Bytes())
}

// Bytes serializes the changelog.
func (c *Changelog) Bytes() []byte {
	var b strings.Builder
	b.WriteString(c.Preamble)
	for _, s := range c.Sections {
		b.WriteString(s.Heading)
		b.WriteString(s.eol)
		b.WriteString(s.Body)
	}
	return []byte(b.String())
}

// Pending returns the single pending section.
func (c *Changelog) Pending() (*Section, error) {
	var found []*Section
	for _, s := range c.Sections {
		if s.IsPending() {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: add a '## [X.Y.Z] - Current' heading", ErrNoPendingSection)
	case 1:
		return found[0], nil
	default:
		headings := make([]string, len(found))
		for i, s := range found {
			headings[i] = s.Heading
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousPending, strings.Join(headings, ", "))
	}
}

// PendingVersion returns the version of the pending section. ok is false
// for an [Unreleased] section, which carries no version.
func (c *Changelog) PendingVersion() (v Version, ok bool, err error) {
	s, err := c.Pending()
	if err != nil {
		return Version{}, false, err
	}
	if s.Marker == Unreleased {
		return Version{}, false, nil
	}
	v, err = Parse(s.Version)
	if err != nil {
		return Version{}, false, fmt.Errorf("pending heading %q: %w", s.Heading, err)
	}
	return v, true, nil
}

// SetPendingVersion renames the pending section to v. An [Unreleased]
// section has no version and is left alone. It reports whether anything
// changed.
func (c *Changelog) SetPendingVersion(v Version) (bool, error) {
	s, err := c.Pending()
	if err != nil {
		return false, err
	}
	if s.Marker == Unreleased || s.Version == v.String() {
		return false, nil
	}
	m := headingRe.FindStringSubmatch(s.Heading)
	suffix := "Current"
	if m != nil && m[2] != "" {
		suffix = m[2]
	}
	s.setHeading(fmt.Sprintf("## [%s] - %s", v, suffix))
	return true, nil
}

// Stamp turns the pending section into the dated release heading
// "## [v] - date".
func (c *Changelog) Stamp(v Version, date string) error {
	s, err := c.Pending()
	if err != nil {
		return err
	}
	if s.Marker == Pending && s.Version != v.String() {
		return fmt.Errorf("%w: pending section is %s, releasing %s", ErrVersionMismatch, s.Version, v)
	}
	s.setHeading(fmt.Sprintf("## [%s] - %s", v, date))
	return nil
}

// Notes returns the body of the section for v, or "Release v" when the
// section is missing or empty.
func (c *Changelog) Notes(v Version) string {
	for _, s := range c.Sections {
		if s.Version == v.String() {
			if body := strings.TrimSpace(s.Body); body != "" {
				return body
			}
			break
		}
	}
	return "Release " + v.String()
}
