// Package config resolves fieldmap settings from built-in defaults, a YAML
// file, the environment and command-line flags, recording where each value
// came from.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/htmltext"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the command-line layer. Empty strings mean the flag
// was not given.
type ResolveOptions struct {
	ConfigPath            string
	CLIDBPath             string
	CLIProfilesDir        string
	CLINormalizeHTML      string
	CLICollapseWhitespace string
	CLIHTMLMode           string
	CLILogLevel           string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	ProfilesDir ResolvedValue `json:"profiles_dir"`
	LogLevel    ResolvedValue `json:"log_level"`

	NormalizeHTML      ResolvedValue `json:"normalize_html"`
	CollapseWhitespace ResolvedValue `json:"collapse_whitespace"`
	HTMLMode           ResolvedValue `json:"html_mode"`
}

type fileConfig struct {
	DBPath      string `yaml:"db_path"`
	ProfilesDir string `yaml:"profiles_dir"`
	LogLevel    string `yaml:"log_level"`
	Mapper      struct {
		NormalizeHTML      *bool  `yaml:"normalize_html"`
		CollapseWhitespace *bool  `yaml:"collapse_whitespace"`
		HTMLMode           string `yaml:"html_mode"`
	} `yaml:"mapper"`
}

// Environment variables read by ResolveConfig.
const (
	EnvDBPath             = "FIELDMAP_DB"
	EnvProfilesDir        = "FIELDMAP_PROFILES_DIR"
	EnvLogLevel           = "FIELDMAP_LOG_LEVEL"
	EnvNormalizeHTML      = "FIELDMAP_NORMALIZE_HTML"
	EnvCollapseWhitespace = "FIELDMAP_COLLAPSE_WHITESPACE"
	EnvHTMLMode           = "FIELDMAP_HTML_MODE"
)

const defaultFrom = "built-in default"

func homeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fieldmap")
}

func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	defaults := extract.DefaultConfig()
	out := ResolvedConfig{
		ConfigPath:         path,
		DBPath:             ResolvedValue{Value: filepath.Join(homeDir(), "fieldmap.db"), Source: SourceDefault, From: defaultFrom},
		ProfilesDir:        ResolvedValue{Value: filepath.Join(homeDir(), "profiles"), Source: SourceDefault, From: defaultFrom},
		LogLevel:           ResolvedValue{Value: "warn", Source: SourceDefault, From: defaultFrom},
		NormalizeHTML:      ResolvedValue{Value: strconv.FormatBool(defaults.NormalizeHTML), Source: SourceDefault, From: defaultFrom},
		CollapseWhitespace: ResolvedValue{Value: strconv.FormatBool(defaults.CollapseWideWhitespace), Source: SourceDefault, From: defaultFrom},
		HTMLMode:           ResolvedValue{Value: string(defaults.HTMLMode), Source: SourceDefault, From: defaultFrom},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.ProfilesDir, cfg.ProfilesDir, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		apply(&out.HTMLMode, cfg.Mapper.HTMLMode, SourceConfig, path)
		if cfg.Mapper.NormalizeHTML != nil {
			apply(&out.NormalizeHTML, strconv.FormatBool(*cfg.Mapper.NormalizeHTML), SourceConfig, path)
		}
		if cfg.Mapper.CollapseWhitespace != nil {
			apply(&out.CollapseWhitespace, strconv.FormatBool(*cfg.Mapper.CollapseWhitespace), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, EnvDBPath)
	applyEnv(&out.ProfilesDir, EnvProfilesDir)
	applyEnv(&out.LogLevel, EnvLogLevel)
	applyEnv(&out.NormalizeHTML, EnvNormalizeHTML)
	applyEnv(&out.CollapseWhitespace, EnvCollapseWhitespace)
	applyEnv(&out.HTMLMode, EnvHTMLMode)

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.ProfilesDir, opts.CLIProfilesDir, SourceCLI, "--profiles-dir")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.NormalizeHTML, opts.CLINormalizeHTML, SourceCLI, "--html")
	apply(&out.CollapseWhitespace, opts.CLICollapseWhitespace, SourceCLI, "--collapse-whitespace")
	apply(&out.HTMLMode, opts.CLIHTMLMode, SourceCLI, "--html-mode")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.ProfilesDir.Value = expandUserPath(out.ProfilesDir.Value)

	return out, nil
}

// MapperConfig converts the resolved mapper settings.
func (r ResolvedConfig) MapperConfig() (extract.Config, error) {
	normalize, err := parseBool(r.NormalizeHTML)
	if err != nil {
		return extract.Config{}, err
	}
	collapse, err := parseBool(r.CollapseWhitespace)
	if err != nil {
		return extract.Config{}, err
	}
	mode, err := htmltext.ParseMode(r.HTMLMode.Value)
	if err != nil {
		return extract.Config{}, fmt.Errorf("html_mode from %s: %w", r.HTMLMode.From, err)
	}

	return extract.Config{
		NormalizeHTML:          normalize,
		HTMLMode:               mode,
		CollapseWideWhitespace: collapse,
	}, nil
}

// SlogLevel parses the resolved log level (debug, info, warn, error).
func (r ResolvedConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(r.LogLevel.Value)); err != nil {
		return slog.LevelWarn, fmt.Errorf("log_level from %s: %w", r.LogLevel.From, err)
	}
	return level, nil
}

// LoadEnvFiles loads KEY=VALUE files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", p, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

func parseBool(v ResolvedValue) (bool, error) {
	b, err := strconv.ParseBool(v.Value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q from %s", v.Value, v.From)
	}
	return b, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
