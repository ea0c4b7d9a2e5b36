// Package config resolves polr settings from CLI flags, the environment,
// a .env file and ~/.polr/config.yaml, recording where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/politicsradar/polr/internal/pipeline"
	"github.com/politicsradar/polr/internal/segment"
	"github.com/politicsradar/polr/internal/store"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceDotEnv  ValueSource = "dotenv"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Environment variables.
const (
	EnvDBPath    = "POLR_DB_PATH"
	EnvSSDRoot   = "POLR_SSD_ROOT"
	EnvMaxLen    = "POLR_MAX_LEN"
	EnvWorkers   = "POLR_WORKERS"
	EnvLogLevel  = "POLR_LOG_LEVEL"
	EnvLogFormat = "POLR_LOG_FORMAT"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath string
	EnvFile    string

	CLIDBPath    string
	CLIMaxLength string
	CLIWorkers   string
	CLILogLevel  string
	CLILogFormat string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`
	EnvFile    string `json:"env_file,omitempty"`

	DBPath    ResolvedValue `json:"db_path"`
	MaxLength ResolvedValue `json:"max_length"`
	Workers   ResolvedValue `json:"workers"`
	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`
}

type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	SSDRoot   string `yaml:"ssd_root"`
	MaxLength int    `yaml:"max_length"`
	Workers   int    `yaml:"workers"`
	Log       struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".polr", "config.yaml")
}

// ResolveConfig applies, lowest to highest precedence: built-in defaults,
// the config file, the .env file, the process environment and CLI flags.
// A missing config or .env file is not an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	envFile := strings.TrimSpace(opts.EnvFile)
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	out := ResolvedConfig{
		ConfigPath: path,
		DBPath:     ResolvedValue{Value: store.DefaultDBPath, Source: SourceDefault, From: "built-in default"},
		MaxLength:  ResolvedValue{Value: strconv.Itoa(segment.DefaultMaxLength), Source: SourceDefault, From: "built-in default"},
		Workers:    ResolvedValue{Value: strconv.Itoa(pipeline.DefaultWorkers), Source: SourceDefault, From: "built-in default"},
		LogLevel:   ResolvedValue{Value: "info", Source: SourceDefault, From: "built-in default"},
		LogFormat:  ResolvedValue{Value: "text", Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		if root := strings.TrimSpace(cfg.SSDRoot); root != "" {
			apply(&out.DBPath, ssdDBPath(root), SourceConfig, path)
		}
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		if cfg.MaxLength != 0 {
			apply(&out.MaxLength, strconv.Itoa(cfg.MaxLength), SourceConfig, path)
		}
		if cfg.Workers != 0 {
			apply(&out.Workers, strconv.Itoa(cfg.Workers), SourceConfig, path)
		}
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
	}

	dotenv, err := loadDotEnv(envFile)
	if err != nil {
		return out, err
	}
	if dotenv != nil {
		out.EnvFile = envFile
		applyVars(&out, func(key string) string { return dotenv[key] }, SourceDotEnv)
	}
	applyVars(&out, os.Getenv, SourceEnv)

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.MaxLength, opts.CLIMaxLength, SourceCLI, "--max-len")
	apply(&out.Workers, opts.CLIWorkers, SourceCLI, "--workers")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.LogFormat, opts.CLILogFormat, SourceCLI, "--log-format")

	out.DBPath.Value = store.ExpandPath(out.DBPath.Value)

	return out, nil
}

// applyVars overlays POLR_* variables looked up through get.
// POLR_DB_PATH wins over POLR_SSD_ROOT from the same source.
func applyVars(out *ResolvedConfig, get func(string) string, source ValueSource) {
	if root := strings.TrimSpace(get(EnvSSDRoot)); root != "" {
		apply(&out.DBPath, ssdDBPath(root), source, EnvSSDRoot)
	}
	apply(&out.DBPath, get(EnvDBPath), source, EnvDBPath)
	apply(&out.MaxLength, get(EnvMaxLen), source, EnvMaxLen)
	apply(&out.Workers, get(EnvWorkers), source, EnvWorkers)
	apply(&out.LogLevel, get(EnvLogLevel), source, EnvLogLevel)
	apply(&out.LogFormat, get(EnvLogFormat), source, EnvLogFormat)
}

// MaxLengthInt parses the resolved fragment length bound.
func (r ResolvedConfig) MaxLengthInt() (int, error) {
	return positiveInt("max length", r.MaxLength)
}

// WorkersInt parses the resolved worker count.
func (r ResolvedConfig) WorkersInt() (int, error) {
	return positiveInt("workers", r.Workers)
}

func positiveInt(name string, v ResolvedValue) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q (from %s %s): must be a positive integer", name, v.Value, v.Source, v.From)
	}
	return n, nil
}

func ssdDBPath(root string) string {
	return filepath.Join(root, "db", "pm_speeches.db")
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
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

// loadDotEnv reads a .env file without touching the process environment.
func loadDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vars, nil
}
