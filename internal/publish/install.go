package publish

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/runner"
	"github.com/fyrsmithlabs/releasegate/internal/secrets"
)

// PrintInstallInstructions shows how to install the artifact by hand.
func (p *Publisher) PrintInstallInstructions(a *Artifact) {
	p.UI.Heading("Install Instructions")
	p.UI.Detail(strings.Join([]string{
		"Command Palette:",
		"  1. Open VS Code and press Ctrl+Shift+P (macOS: Cmd+Shift+P)",
		"  2. Run: Extensions: Install from VSIX...",
		"  3. Select " + a.Path,
		"",
		"Command line:",
		"  code --install-extension " + a.Name(),
	}, "\n"))
}

// OfferInstall asks whether to install the artifact into the local editor
// and installs it on yes. It reports whether the extension was installed.
// Nothing here is recorded in the run log.
func (p *Publisher) OfferInstall(ctx context.Context, a *Artifact) bool {
	if a == nil {
		return false
	}
	if _, err := p.Runner.LookPath("code"); err != nil {
		p.UI.Warn("VS Code CLI (code) not found on PATH; cannot auto-install.")
		p.UI.Info("Add it via: Ctrl+Shift+P > 'Shell Command: Install code command in PATH'")
		return false
	}
	if !p.Confirm.Ask("Install via CLI now?", false) {
		return false
	}

	p.UI.Info("Running: code --install-extension %s", a.Name())
	res, err := p.Runner.Run(ctx, runner.Cmd("code", "--install-extension", a.Path))
	if err != nil || !res.OK() {
		var msg string
		if err != nil {
			msg = err.Error()
		} else {
			msg = secrets.Redact(strings.TrimSpace(res.Stderr))
		}
		p.UI.Fail("Install failed: %s", msg)
		p.log().Warn(ctx, "local install failed", zap.String("artifact", a.Path), zap.Error(err))
		return false
	}
	p.UI.OK("Extension installed successfully!")
	p.UI.Info("Reload VS Code to activate the updated extension.")
	return true
}
