package secrets

// Rule is one credential pattern.
type Rule struct {
	// ID names the rule in findings.
	ID string

	// Pattern matches the credential. When it has a capture group only the
	// first group is redacted, so "token=" prefixes stay readable.
	Pattern string

	// Keywords, when set, must appear (case-insensitively) somewhere in the
	// content before the rule is tried.
	Keywords []string
}

// DefaultRules covers the credentials a release run handles: GitHub and npm
// tokens, the marketplace personal access token and generic key/value pairs.
func DefaultRules() []Rule {
	return []Rule{
		// GitHub prefixes are self-identifying
		{ID: "github-token", Pattern: `gh[pousr]_[A-Za-z0-9]{36,}`},
		{ID: "github-fine-grained", Pattern: `github_pat_[A-Za-z0-9_]{22,}`},
		{ID: "npm-token", Pattern: `npm_[A-Za-z0-9]{36}`},
		{
			// Azure DevOps PATs used by vsce: 52 chars of lowercase base32,
			// or the newer 84 char form.
			ID:       "azure-devops-pat",
			Pattern:  `\b([a-z2-7]{52}|[A-Za-z0-9]{84})\b`,
			Keywords: []string{"pat", "token", "vsce", "azure", "marketplace"},
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)(?:authorization|bearer)\s*[:=]?\s*(?:bearer\s+)?([A-Za-z0-9_\-\.=]{20,})`,
			Keywords: []string{"authorization", "bearer"},
		},
		{
			ID:      "url-credentials",
			Pattern: `(?i)https?://[^/\s:@]+:([^@\s/]+)@`,
		},
		{
			ID:       "generic-credential",
			Pattern:  `(?i)(?:token|secret|password|api[_-]?key)["']?\s*[:=]\s*["']?([^\s"']{8,})`,
			Keywords: []string{"token", "secret", "password", "key"},
		},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`},
		{ID: "jwt", Pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`},
	}
}
