// Package config provides configuration loading for releasegate.
//
// Values come from built-in defaults, then the project config file, then
// RELEASEGATE_* environment variables. Command-line flags are applied by the
// caller on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete releasegate configuration.
type Config struct {
	Project       ProjectConfig       `koanf:"project"`
	Prerequisites PrerequisitesConfig `koanf:"prerequisites"`
	Environment   EnvironmentConfig   `koanf:"environment"`
	Build         BuildConfig         `koanf:"build"`
	Quality       QualityConfig       `koanf:"quality"`
	Version       VersionConfig       `koanf:"version"`
	Publish       PublishConfig       `koanf:"publish"`
	Release       ReleaseConfig       `koanf:"release"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ProjectConfig locates the extension project.
type ProjectConfig struct {
	Root           string `koanf:"root"`
	Name           string `koanf:"name"`
	Manifest       string `koanf:"manifest"`
	Changelog      string `koanf:"changelog"`
	ReportsDir     string `koanf:"reports_dir"`
	RepoURL        string `koanf:"repo_url"`
	MarketplaceURL string `koanf:"marketplace_url"`
}

// PrerequisitesConfig tunes the toolchain checks.
type PrerequisitesConfig struct {
	MinNodeMajor int      `koanf:"min_node_major"`
	AuthTimeout  Duration `koanf:"auth_timeout"`
}

// EnvironmentConfig lists the global tooling the project expects.
type EnvironmentConfig struct {
	GlobalPackages   []string `koanf:"global_packages"`
	EditorExtensions []string `koanf:"editor_extensions"`
}

// BuildConfig holds the project commands. Each command is a single string
// split on whitespace; no shell is involved.
type BuildConfig struct {
	InstallCommand Command `koanf:"install_command"`
	CompileCommand Command `koanf:"compile_command"`
	TestCommand    Command `koanf:"test_command"`
	PackageCommand Command `koanf:"package_command"`
	ArtifactGlob   string  `koanf:"artifact_glob"`
}

// QualityConfig bounds source file length.
type QualityConfig struct {
	SourceDir    string   `koanf:"source_dir"`
	Extensions   []string `koanf:"extensions"`
	MaxFileLines int      `koanf:"max_file_lines"`
	IgnoreFiles  []string `koanf:"ignore_files"`
}

// VersionConfig tunes version reconciliation.
type VersionConfig struct {
	MaxBumps int `koanf:"max_bumps"`
}

// PublishConfig holds the marketplace settings.
type PublishConfig struct {
	Publisher     string  `koanf:"publisher"`
	Remote        string  `koanf:"remote"`
	UploadCommand Command `koanf:"upload_command"`
}

// Release record providers.
const (
	ProviderCLI = "gh"
	ProviderAPI = "api"
)

// ReleaseConfig selects how the hosted release record is created.
type ReleaseConfig struct {
	Provider string `koanf:"provider"`
	Owner    string `koanf:"owner"`
	Repo     string `koanf:"repo"`
	Token    Secret `koanf:"token"`
}

// LoggingConfig holds the diagnostic log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Default returns the configuration for a stock extension project.
func Default() Config {
	return Config{
		Project: ProjectConfig{
			Manifest:   "package.json",
			Changelog:  "CHANGELOG.md",
			ReportsDir: "reports",
		},
		Prerequisites: PrerequisitesConfig{
			MinNodeMajor: 18,
			AuthTimeout:  Duration(10 * time.Second),
		},
		Environment: EnvironmentConfig{
			GlobalPackages: []string{"yo", "generator-code"},
			EditorExtensions: []string{
				"connor4312.esbuild-problem-matchers",
				"dbaeumer.vscode-eslint",
				"ms-vscode.extension-test-runner",
			},
		},
		Build: BuildConfig{
			InstallCommand: "npm install",
			CompileCommand: "npm run compile",
			TestCommand:    "npm run test",
			PackageCommand: "npx @vscode/vsce package --no-dependencies",
			ArtifactGlob:   "*.vsix",
		},
		Quality: QualityConfig{
			SourceDir:    "src",
			Extensions:   []string{".ts"},
			MaxFileLines: 300,
			IgnoreFiles:  []string{".gitignore"},
		},
		Version: VersionConfig{MaxBumps: 20},
		Publish: PublishConfig{
			Remote:        "origin",
			UploadCommand: "npx @vscode/vsce publish",
		},
		Release: ReleaseConfig{Provider: ProviderCLI},
		Logging: LoggingConfig{Level: "warn", Format: "console"},
	}
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Prerequisites.MinNodeMajor < 1 {
		errs = append(errs, fmt.Errorf("prerequisites.min_node_major must be positive, got %d", c.Prerequisites.MinNodeMajor))
	}
	if c.Prerequisites.AuthTimeout <= 0 {
		errs = append(errs, errors.New("prerequisites.auth_timeout must be positive"))
	}
	for _, required := range []struct {
		key string
		cmd Command
	}{
		{"build.compile_command", c.Build.CompileCommand},
		{"build.package_command", c.Build.PackageCommand},
		{"publish.upload_command", c.Publish.UploadCommand},
	} {
		if len(required.cmd.Argv()) == 0 {
			errs = append(errs, fmt.Errorf("%s is required", required.key))
		}
	}
	if c.Quality.MaxFileLines < 0 {
		errs = append(errs, fmt.Errorf("quality.max_file_lines cannot be negative, got %d", c.Quality.MaxFileLines))
	}
	if c.Version.MaxBumps < 1 {
		errs = append(errs, fmt.Errorf("version.max_bumps must be positive, got %d", c.Version.MaxBumps))
	}

	switch c.Release.Provider {
	case ProviderCLI:
	case ProviderAPI:
		if !c.Release.Token.IsSet() {
			errs = append(errs, errors.New("release.token (or GITHUB_TOKEN) is required for the api provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("release.provider must be %q or %q, got %q", ProviderCLI, ProviderAPI, c.Release.Provider))
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
