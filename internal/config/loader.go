package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "RELEASEGATE_"
)

// FileNames are the project config files looked for, in order, when no
// explicit path is given.
var FileNames = []string{".releasegate.yaml", ".releasegate.yml", ".releasegate.toml"}

// ErrConfigPath indicates an explicit config path outside the allowed
// directories.
var ErrConfigPath = errors.New("config file must be in the project directory or ~/.config/releasegate/")

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ProjectDir is the extension project. Empty means the working directory.
	ProjectDir string

	// File is an explicit config file. Empty means discover one of FileNames
	// in ProjectDir; finding none is not an error.
	File string
}

// Load builds the configuration from defaults, the config file and the
// environment.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RELEASEGATE_BUILD_TEST_COMMAND, ...)
//  2. Config file (.releasegate.yaml or .releasegate.toml)
//  3. Built-in defaults
//
// Environment variables map RELEASEGATE_<SECTION>_<FIELD> to section.field:
//
//	RELEASEGATE_QUALITY_MAX_FILE_LINES -> quality.max_file_lines
//	RELEASEGATE_RELEASE_PROVIDER       -> release.provider
//
// List values are comma separated. GITHUB_TOKEN is used for release.token
// when no token is configured.
//
// Files larger than 1MB and world-writable files are rejected. An explicit
// path must resolve, after following symlinks, inside the project directory
// or ~/.config/releasegate/.
func Load(opts LoadOptions) (*Config, error) {
	root, err := projectRoot(opts.ProjectDir)
	if err != nil {
		return nil, err
	}

	path := opts.File
	if path != "" {
		if err := validateConfigPath(path, root); err != nil {
			return nil, fmt.Errorf("config path validation failed: %w", err)
		}
	} else {
		path = discover(root)
	}

	k := koanf.New(".")
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, root)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// unmarshalConf extends koanf's default decoding so that comma separated
// environment values fill list settings.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           out,
			WeaklyTypedInput: true,
		},
	}
}

// envKey maps RELEASEGATE_SECTION_FIELD_NAME to section.field_name. Keys
// without a field part are ignored.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func projectRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", abs)
	}
	return abs, nil
}

func discover(root string) string {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return tomlParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml or .toml)", filepath.Ext(path))
	}
}

func loadFile(k *koanf.Koanf, path string) error {
	parser, err := parserFor(path)
	if err != nil {
		return err
	}

	// Open once and validate through the descriptor to avoid a TOCTOU race.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return fmt.Errorf("config file too large: more than %d bytes", maxConfigFileSize)
	}

	if err := k.Load(rawbytes.Provider(content), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// UserConfigDir returns ~/.config/releasegate.
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "releasegate"), nil
}

// validateConfigPath checks that path lies in the project directory or the
// user config directory. Symlinks are resolved on both sides.
func validateConfigPath(path, root string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved := resolveSymlinks(absPath)

	allowed := []string{resolveSymlinks(root)}
	if dir, err := UserConfigDir(); err == nil {
		allowed = append(allowed, resolveSymlinks(dir))
	}
	for _, dir := range allowed {
		if within(resolved, dir) {
			return nil
		}
	}
	return ErrConfigPath
}

// resolveSymlinks follows symlinks where the path exists and falls back to
// the cleaned path otherwise.
func resolveSymlinks(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// validateConfigFileProperties checks file type, permissions and size.
// Takes FileInfo from an already-opened file descriptor.
func validateConfigFileProperties(info fs.FileInfo) error {
	if info.IsDir() {
		return errors.New("config path is a directory")
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults fills values that were explicitly emptied or that depend on
// the environment.
func applyDefaults(cfg *Config, root string) {
	def := Default()

	if cfg.Project.Root == "" {
		cfg.Project.Root = root
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(root, cfg.Project.Root)
	}
	if cfg.Project.Manifest == "" {
		cfg.Project.Manifest = def.Project.Manifest
	}
	if cfg.Project.Changelog == "" {
		cfg.Project.Changelog = def.Project.Changelog
	}
	if cfg.Project.ReportsDir == "" {
		cfg.Project.ReportsDir = def.Project.ReportsDir
	}
	if cfg.Build.ArtifactGlob == "" {
		cfg.Build.ArtifactGlob = def.Build.ArtifactGlob
	}
	if cfg.Publish.Remote == "" {
		cfg.Publish.Remote = def.Publish.Remote
	}
	if cfg.Release.Provider == "" {
		cfg.Release.Provider = def.Release.Provider
	}
	if !cfg.Release.Token.IsSet() {
		cfg.Release.Token = Secret(os.Getenv("GITHUB_TOKEN"))
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// Path resolves p against the project root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}
