// Package ui renders operator-facing progress lines and asks yes/no
// questions. Both capabilities are passed explicitly to the code that needs
// them so headless tests can swap in Nop and Scripted.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Formatter prints categorized status lines.
type Formatter interface {
	// Heading starts a new section.
	Heading(text string)
	// OK reports a passed check.
	OK(format string, args ...any)
	// Fix reports a problem that was repaired automatically.
	Fix(format string, args ...any)
	Fail(format string, args ...any)
	Warn(format string, args ...any)
	Info(format string, args ...any)
	// Detail prints indented secondary text such as captured tool output.
	Detail(text string)
}

const ruleWidth = 60

// Console writes styled lines to an io.Writer.
type Console struct {
	w     io.Writer
	r     *lipgloss.Renderer
	rule  lipgloss.Style
	title lipgloss.Style
	ok    lipgloss.Style
	fix   lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	info  lipgloss.Style
	dim   lipgloss.Style
}

// ConsoleOption configures a Console.
type ConsoleOption func(*consoleOptions)

type consoleOptions struct {
	noColor bool
}

// WithNoColor forces plain ASCII output.
func WithNoColor(noColor bool) ConsoleOption {
	return func(o *consoleOptions) { o.noColor = o.noColor || noColor }
}

// NewConsole creates a Console on w. Colour follows the terminal profile
// of w; NO_COLOR in the environment or WithNoColor disables it.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	o := consoleOptions{noColor: termenv.EnvNoColor()}
	for _, opt := range opts {
		opt(&o)
	}

	r := lipgloss.NewRenderer(w)
	if o.noColor {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Console{
		w:     w,
		r:     r,
		rule:  r.NewStyle().Foreground(lipgloss.Color("51")),
		title: r.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("46")),
		fix:   r.NewStyle().Foreground(lipgloss.Color("201")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("226")),
		info:  r.NewStyle().Foreground(lipgloss.Color("45")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (c *Console) Heading(text string) {
	bar := c.rule.Render(strings.Repeat("=", ruleWidth))
	fmt.Fprintf(c.w, "\n%s\n  %s\n%s\n", bar, c.title.Render(text), bar)
}

func (c *Console) line(style lipgloss.Style, tag, format string, args ...any) {
	// tags are padded to a common width so messages line up
	fmt.Fprintf(c.w, "  %s %s\n", style.Render(fmt.Sprintf("%-6s", tag)), fmt.Sprintf(format, args...))
}

func (c *Console) OK(format string, args ...any)   { c.line(c.ok, "[OK]", format, args...) }
func (c *Console) Fix(format string, args ...any)  { c.line(c.fix, "[FIX]", format, args...) }
func (c *Console) Fail(format string, args ...any) { c.line(c.fail, "[FAIL]", format, args...) }
func (c *Console) Warn(format string, args ...any) { c.line(c.warn, "[WARN]", format, args...) }
func (c *Console) Info(format string, args ...any) { c.line(c.info, "[INFO]", format, args...) }

func (c *Console) Detail(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(c.w, "         %s\n", c.dim.Render(l))
	}
}

// Dim renders secondary text.
func (c *Console) Dim(text string) string { return c.dim.Render(text) }

// Bar renders a timing bar in the pass or fail colour.
func (c *Console) Bar(text string, passed bool) string {
	if passed {
		return c.ok.Render(text)
	}
	return c.fail.Render(text)
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer { return c.w }

// Nop discards everything.
type Nop struct{}

func (Nop) Heading(string)      {}
func (Nop) OK(string, ...any)   {}
func (Nop) Fix(string, ...any)  {}
func (Nop) Fail(string, ...any) {}
func (Nop) Warn(string, ...any) {}
func (Nop) Info(string, ...any) {}
func (Nop) Detail(string)       {}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
