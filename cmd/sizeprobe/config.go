package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every setting of a probe run.
type Config struct {
	URLs      []string      `mapstructure:"urls" validate:"required,min=1,dive,url"`
	Workers   int           `mapstructure:"workers" validate:"gte=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Retries   int           `mapstructure:"retries" validate:"gte=0"`
	RateLimit float64       `mapstructure:"rate_limit" validate:"gte=0"`
	LogLevel  string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string        `mapstructure:"log_format" validate:"oneof=json text"`
	Progress  bool          `mapstructure:"progress"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"workers":    "workers",
	"timeout":    "timeout",
	"retries":    "retries",
	"rate":       "rate_limit",
	"log-level":  "log_level",
	"log-format": "log_format",
	"progress":   "progress",
}

// loadConfig merges defaults, the optional YAML file at path, SIZEPROBE_*
// environment variables and the flags set explicitly on fs, in increasing
// order of precedence. Positional args replace the configured URL list.
func loadConfig(path string, fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("workers", 0)
	v.SetDefault("timeout", "10s")
	v.SetDefault("retries", 0)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("progress", true)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("SIZEPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// urls has no default, so AutomaticEnv alone would not surface it
	if err := v.BindEnv("urls"); err != nil {
		return nil, fmt.Errorf("bind urls env: %w", err)
	}

	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		})
		if args := fs.Args(); len(args) > 0 {
			v.Set("urls", args)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, fmt.Errorf("invalid config: %s failed %s %s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
