// Package config loads daemon configuration from, in increasing order of
// precedence: built-in defaults, a YAML file, SRS_-prefixed environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/quizforge/srs/internal/scheduler"
)

// Config is the daemon's full configuration.
type Config struct {
	ListenAddr string           `koanf:"listen_addr" validate:"required"`
	DBPath     string           `koanf:"db_path" validate:"required"`
	Scheduler  scheduler.Params `koanf:"scheduler"`
}

// Default returns the built-in configuration: local listener, a srs.db file
// in the working directory, and stock scheduler constants.
func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:8571",
		DBPath:     "srs.db",
		Scheduler:  *scheduler.DefaultParams(),
	}
}

// Load merges the file at path (skipped when empty), the environment, and
// the given flag set over the defaults, then validates the result.
//
// Environment variables map SRS_LISTEN_ADDR to listen_addr and
// SRS_SCHEDULER__MASTER_REPS to scheduler.master_reps.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("SRS_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "SRS_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
