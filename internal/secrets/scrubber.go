package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every redacted credential.
const Placeholder = "[REDACTED]"

// Finding records one redaction without the secret itself.
type Finding struct {
	RuleID string
	Line   int
}

// Result is the outcome of one Scrub call.
type Result struct {
	Scrubbed string
	Findings []Finding
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the distinct rules that matched, sorted.
func (r *Result) RuleIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

// Scrubber redacts credentials matched by a fixed rule set and, optionally,
// by the gitleaks default rule set. It is safe for concurrent use.
type Scrubber struct {
	rules []compiledRule

	gitleaks   bool
	detectOnce sync.Once
	detectMu   sync.Mutex
	detector   *detect.Detector
}

type span struct{ start, end int }

// Option configures a Scrubber.
type Option func(*Scrubber)

// WithGitleaks also runs the gitleaks default rules over scrubbed content.
// The detector is built on first use.
func WithGitleaks() Option {
	return func(s *Scrubber) { s.gitleaks = true }
}

// New compiles rules. A nil slice means DefaultRules.
func New(rules []Rule, opts ...Option) (*Scrubber, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	s := &Scrubber{rules: make([]compiledRule, 0, len(rules))}
	for _, opt := range opts {
		opt(s)
	}
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	return s, nil
}

// MustNew is New for rule sets known to compile.
func MustNew(rules []Rule, opts ...Option) *Scrubber {
	s, err := New(rules, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub redacts every match in content.
func (s *Scrubber) Scrub(content string) *Result {
	res := &Result{Scrubbed: content}
	if content == "" {
		return res
	}

	lower := strings.ToLower(content)
	var spans []span
	for _, r := range s.rules {
		if !hasKeyword(lower, r.keywords) {
			continue
		}
		for _, m := range r.pattern.FindAllStringSubmatchIndex(content, -1) {
			sp := span{m[0], m[1]}
			if len(m) >= 4 && m[2] >= 0 {
				sp = span{m[2], m[3]}
			}
			spans = append(spans, sp)
			res.Findings = append(res.Findings, Finding{
				RuleID: r.id,
				Line:   strings.Count(content[:sp.start], "\n") + 1,
			})
		}
	}
	for _, f := range s.leaks(content) {
		for _, sp := range occurrences(content, f.secret) {
			spans = append(spans, sp)
			res.Findings = append(res.Findings, Finding{
				RuleID: f.ruleID,
				Line:   strings.Count(content[:sp.start], "\n") + 1,
			})
		}
	}
	if len(spans) == 0 {
		return res
	}

	var b strings.Builder
	last := 0
	for _, sp := range merge(spans) {
		b.WriteString(content[last:sp.start])
		b.WriteString(Placeholder)
		last = sp.end
	}
	b.WriteString(content[last:])
	res.Scrubbed = b.String()
	return res
}

type detected struct {
	ruleID string
	secret string
}

// leaks returns the gitleaks findings for content. A detector that fails
// to build leaves the regexp rules as the only protection.
func (s *Scrubber) leaks(content string) []detected {
	if !s.gitleaks {
		return nil
	}
	s.detectOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err == nil {
			s.detector = d
		}
	})
	if s.detector == nil {
		return nil
	}

	s.detectMu.Lock()
	findings := s.detector.DetectString(content)
	s.detectMu.Unlock()

	out := make([]detected, 0, len(findings))
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		out = append(out, detected{ruleID: "gitleaks:" + f.RuleID, secret: f.Secret})
	}
	return out
}

// occurrences finds every non-overlapping position of needle in content.
func occurrences(content, needle string) []span {
	var out []span
	for off := 0; ; {
		i := strings.Index(content[off:], needle)
		if i < 0 {
			return out
		}
		start := off + i
		out = append(out, span{start, start + len(needle)})
		off = start + len(needle)
	}
}

func hasKeyword(lower string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or adjacent ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

var defaultScrubber = MustNew(nil, WithGitleaks())

// Redact scrubs content with the default rules and the gitleaks rule set.
func Redact(content string) string {
	return defaultScrubber.Scrub(content).Scrubbed
}
