package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 18, cfg.Prerequisites.MinNodeMajor)
	assert.Equal(t, 10*time.Second, cfg.Prerequisites.AuthTimeout.Duration())
	assert.Equal(t, []string{"yo", "generator-code"}, cfg.Environment.GlobalPackages)
	assert.Len(t, cfg.Environment.EditorExtensions, 3)
	assert.Equal(t, []string{"npm", "run", "compile"}, cfg.Build.CompileCommand.Argv())
	assert.Equal(t, "*.vsix", cfg.Build.ArtifactGlob)
	assert.Equal(t, 300, cfg.Quality.MaxFileLines)
	assert.Equal(t, []string{".gitignore"}, cfg.Quality.IgnoreFiles)
	assert.Equal(t, 20, cfg.Version.MaxBumps)
	assert.Equal(t, ProviderCLI, cfg.Release.Provider)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "node major",
			mutate:  func(c *Config) { c.Prerequisites.MinNodeMajor = 0 },
			wantErr: "min_node_major",
		},
		{
			name:    "auth timeout",
			mutate:  func(c *Config) { c.Prerequisites.AuthTimeout = 0 },
			wantErr: "auth_timeout",
		},
		{
			name:    "blank compile command",
			mutate:  func(c *Config) { c.Build.CompileCommand = "   " },
			wantErr: "build.compile_command is required",
		},
		{
			name:    "blank upload command",
			mutate:  func(c *Config) { c.Publish.UploadCommand = "" },
			wantErr: "publish.upload_command is required",
		},
		{
			name:    "negative line limit",
			mutate:  func(c *Config) { c.Quality.MaxFileLines = -1 },
			wantErr: "max_file_lines",
		},
		{
			name:    "max bumps",
			mutate:  func(c *Config) { c.Version.MaxBumps = 0 },
			wantErr: "max_bumps",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Release.Provider = "gitlab" },
			wantErr: `got "gitlab"`,
		},
		{
			name:    "api provider without token",
			mutate:  func(c *Config) { c.Release.Provider = ProviderAPI },
			wantErr: "release.token",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Version.MaxBumps = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_bumps")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_APIProviderWithToken(t *testing.T) {
	cfg := Default()
	cfg.Release.Provider = ProviderAPI
	cfg.Release.Token = "ghp_example"
	assert.NoError(t, cfg.Validate())
}

func TestCommand_Argv(t *testing.T) {
	assert.Equal(t, []string{"npx", "@vscode/vsce", "publish"}, Command("  npx  @vscode/vsce\tpublish ").Argv())
	assert.Empty(t, Command("").Argv())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "ghp_supersecret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct{ Token Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")

	y, err := s.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", y)

	var empty Secret
	assert.False(t, empty.IsSet())
	assert.Equal(t, "", empty.String())
}
