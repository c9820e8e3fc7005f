// Package config loads crid settings from defaults, an optional CUE file,
// an optional .env file and the process environment, in that order.
// Command-line flags are applied on top by the cli package.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaCUE string

// Config is the merged runtime configuration.
type Config struct {
	DBPath   string `json:"db_path" env:"CRID_DB_PATH" validate:"required"`
	Admin    string `json:"admin,omitempty" env:"CRID_ADMIN"`
	LogLevel string `json:"log_level" env:"CRID_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format   string `json:"format" env:"CRID_FORMAT" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:   "crid.db",
		LogLevel: "info",
		Format:   "text",
	}
}

// Options selects the optional sources Load reads.
type Options struct {
	// File is a CUE configuration file. Empty skips it.
	File string

	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string

	// Environ overrides the process environment, for tests.
	Environ []string
}

// Load builds a Config from defaults, File, EnvFile and the environment.
// Variables already in the environment win over the dotenv file.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := LoadFile(opts.File, &cfg); err != nil {
			return Config{}, err
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	vars, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return Config{}, err
	}
	for k, v := range env.ToMap(environ) {
		vars[k] = v
	}
	if err := ParseEnv(&cfg, vars); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors #Config. Nil fields were absent from the file.
type fileConfig struct {
	DBPath   *string `json:"db_path"`
	Admin    *string `json:"admin"`
	LogLevel *string `json:"log_level"`
	Format   *string `json:"format"`
}

// LoadFile unifies a CUE file with the embedded schema and overlays the
// fields it sets onto cfg. Unknown fields are rejected.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	overlay(&cfg.DBPath, fc.DBPath)
	overlay(&cfg.Admin, fc.Admin)
	overlay(&cfg.LogLevel, fc.LogLevel)
	overlay(&cfg.Format, fc.Format)
	return nil
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}

// ParseEnv overlays CRID_* variables from vars onto target.
func ParseEnv(target any, vars map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
