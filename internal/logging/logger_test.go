package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Format = "xml" },
			wantErr: "format must be",
		},
		{
			name:    "no outputs",
			mutate:  func(c *Config) { c.Output.Stderr = false },
			wantErr: "at least one output",
		},
		{
			name:    "bad pattern",
			mutate:  func(c *Config) { c.Redaction.Patterns = []string{"("} },
			wantErr: "invalid redaction pattern",
		},
		{
			name:    "empty field value",
			mutate:  func(c *Config) { c.Fields["env"] = "" },
			wantErr: "empty value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"trace", TraceLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown level falls back to warn", func(t *testing.T) {
		got, err := LevelFromString("loud")
		assert.Error(t, err)
		assert.Equal(t, zapcore.WarnLevel, got)
	})
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "releasegate.log")

	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.File = path

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-1")
	logger.Debug(ctx, "command finished", zap.String("token", "ghp_abcdefghijklmnopqrstuvwxyz"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "command finished")
	assert.Contains(t, out, `"run.id":"run-1"`)
	assert.Contains(t, out, `"service":"releasegate"`)
	assert.NotContains(t, out, "ghp_abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "yaml"

	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestLogger_ChildLoggers(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("runner").With(zap.String("component", "exec"))

	child.Info(context.Background(), "child message")

	tl.AssertLogged(t, zapcore.InfoLevel, "child message")
	tl.AssertField(t, "child message", "component", "exec")
}

func TestLogger_TraceGated(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.File = filepath.Join(t.TempDir(), "out.log")

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	assert.False(t, logger.Enabled(TraceLevel))
	assert.True(t, logger.Enabled(zapcore.DebugLevel))
}
