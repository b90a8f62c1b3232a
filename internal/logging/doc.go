// Package logging provides structured diagnostic logging for releasegate.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug) for full command output
//   - Stderr and optional file output, leaving stdout to the step formatter
//   - Automatic context field injection (run.id, stage)
//   - Secret redaction of GitHub and marketplace tokens
//
// The operator-facing progress lines are not log entries; they belong to
// the ui package. This logger carries the diagnostics behind them.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithStage(ctx, "Compile")
//	logger.Debug(ctx, "command finished", zap.Int("exit_code", 0))
//
// # Configuration Precedence
//
//  1. Defaults (NewDefaultConfig)
//  2. File (.releasegate.yaml or .releasegate.toml)
//  3. Environment variables (RELEASEGATE_LOGGING_*)
//  4. The --verbose flag, which lowers the level to debug
//
// # Secret Redaction
//
// config.Secret never formats its value. RedactingEncoder then replaces
// values under sensitive keys and cuts credentials out of every other
// string, using the secrets package rules plus any configured patterns.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "run stopped", zap.String("step", "compile"))
//	tl.AssertCorrelated(t, "run stopped", runID, "Compile")
//	tl.AssertNotLeaked(t, token)
package logging
