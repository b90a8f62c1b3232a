package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Confirmer answers yes/no questions.
type Confirmer interface {
	Ask(question string, def bool) bool
}

type line struct {
	text string
	err  error
}

// Prompt asks the operator on a line-oriented input. Empty input, EOF and
// an interrupt all resolve to the question's default.
type Prompt struct {
	in         io.Reader
	out        io.Writer
	interrupts <-chan os.Signal
	echo       bool

	start sync.Once
	lines chan line
	done  chan struct{}
	stop  sync.Once
	eof   bool
}

// PromptOption configures a Prompt.
type PromptOption func(*Prompt)

// WithInterrupts lets signals delivered on ch resolve a pending question.
func WithInterrupts(ch <-chan os.Signal) PromptOption {
	return func(p *Prompt) { p.interrupts = ch }
}

// WithEcho prints the answer after reading it, for inputs that are not a
// terminal and therefore do not echo.
func WithEcho(echo bool) PromptOption {
	return func(p *Prompt) { p.echo = echo }
}

// NewPrompt creates a Prompt reading from in and writing questions to out.
func NewPrompt(in io.Reader, out io.Writer, opts ...PromptOption) *Prompt {
	p := &Prompt{
		in:    in,
		out:   out,
		lines: make(chan line),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// read feeds lines to Ask. It runs until EOF, a read error, or Close.
func (p *Prompt) read() {
	sc := bufio.NewScanner(p.in)
	for sc.Scan() {
		select {
		case p.lines <- line{text: sc.Text()}:
		case <-p.done:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case p.lines <- line{err: err}:
	case <-p.done:
	}
}

// Ask prints question with a [Y/n] or [y/N] hint and waits for an answer.
func (p *Prompt) Ask(question string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "  %s [%s]: ", question, hint)

	if p.eof {
		fmt.Fprintln(p.out)
		return def
	}
	p.start.Do(func() { go p.read() })

	// an interrupt delivered before this question must not answer it
	p.drainInterrupts()

	select {
	case l := <-p.lines:
		if l.err != nil {
			p.eof = true
			fmt.Fprintln(p.out)
			return def
		}
		answer := strings.ToLower(strings.TrimSpace(l.text))
		result := def
		if answer != "" {
			result = answer == "y" || answer == "yes"
		}
		if p.echo {
			fmt.Fprintln(p.out, yesNo(result))
		}
		return result
	case <-p.interrupts:
		fmt.Fprintln(p.out)
		return def
	}
}

func (p *Prompt) drainInterrupts() {
	if p.interrupts == nil {
		return
	}
	for {
		select {
		case <-p.interrupts:
		default:
			return
		}
	}
}

// Close stops the input reader once its pending read returns.
func (p *Prompt) Close() {
	p.stop.Do(func() { close(p.done) })
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Auto answers yes to everything, reporting each question on ui.
type Auto struct {
	UI Formatter
}

func (a Auto) Ask(question string, _ bool) bool {
	if a.UI != nil {
		a.UI.Info("%s yes (auto-confirm)", question)
	}
	return true
}

// Scripted answers from a queue and records every question. Once the queue
// is empty it returns each question's default.
type Scripted struct {
	mu        sync.Mutex
	answers   []bool
	questions []string
}

// NewScripted creates a Scripted confirmer with queued answers.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Ask(question string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return def
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a
}

// Questions returns the questions asked so far.
func (s *Scripted) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}
