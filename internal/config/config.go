package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. CERBERUS_LOG_ARCHIVE_DSN.
const EnvPrefix = "CERBERUS"

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	DefaultService string         `toml:"default_service" mapstructure:"default_service" validate:"required,max=64"`
	Log            LogConfig      `toml:"log" mapstructure:"log"`
	Terminal       TerminalConfig `toml:"terminal" mapstructure:"terminal"`
	HTTP           HTTPConfig     `toml:"http" mapstructure:"http"`
	Metrics        MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
}

type LogConfig struct {
	Dir            string        `toml:"dir" mapstructure:"dir"`
	MaxSizeMB      int           `toml:"max_size_mb" mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups     int           `toml:"max_backups" mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays     int           `toml:"max_age_days" mapstructure:"max_age_days" validate:"min=0"`
	Compress       bool          `toml:"compress" mapstructure:"compress"`
	Color          bool          `toml:"color" mapstructure:"color"`
	CaptureSlog    bool          `toml:"capture_slog" mapstructure:"capture_slog"`
	HighWaterMark  int           `toml:"high_water_mark" mapstructure:"high_water_mark" validate:"required,gt=0"`
	ArchiveDSN     string        `toml:"archive_dsn" mapstructure:"archive_dsn"`
	ArchiveTimeout time.Duration `toml:"archive_timeout" mapstructure:"archive_timeout" validate:"required,gt=0"`
	FlushSchedule  string        `toml:"flush_schedule" mapstructure:"flush_schedule"`
}

type TerminalConfig struct {
	Enabled     bool     `toml:"enabled" mapstructure:"enabled"`
	Prompt      string   `toml:"prompt" mapstructure:"prompt"`
	Permissions []string `toml:"permissions" mapstructure:"permissions"`
}

type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen" validate:"omitempty,hostname_port"`
	BasePath string `toml:"base_path" mapstructure:"base_path" validate:"omitempty,startswith=/"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Files returns the rotation settings for the console mirror files.
func (c LogConfig) Files() logger.Config {
	return logger.Config{
		Dir:        c.Dir,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_service", "MAIN")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.color", true)
	v.SetDefault("log.capture_slog", true)
	v.SetDefault("log.high_water_mark", logger.DefaultHighWaterMark)
	v.SetDefault("log.archive_dsn", "")
	v.SetDefault("log.archive_timeout", logger.DefaultArchiveTimeout)
	v.SetDefault("log.flush_schedule", "")
	v.SetDefault("terminal.enabled", true)
	v.SetDefault("terminal.prompt", "")
	v.SetDefault("terminal.permissions", []string{})
	v.SetDefault("http.listen", "")
	v.SetDefault("http.base_path", "/api")
	v.SetDefault("metrics.listen", "")
}

// Load reads the TOML file at path, applies defaults and CERBERUS_*
// environment overrides, and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func Validate(fc *FileConfig) error {
	err := validate.Struct(fc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
