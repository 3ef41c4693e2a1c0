// Package config loads pamana's runtime configuration.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, a .env file and PAMANA_* environment variables. The
// merged result is validated before use and passed explicitly to every
// component; nothing in pamana reads configuration from globals.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration.
type Config struct {
	Database          string            `yaml:"database" validate:"required"`
	TempDir           string            `yaml:"temp_dir"`
	Workers           int               `yaml:"workers" validate:"min=1,max=64"`
	LogLevel          string            `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogFormat         string            `yaml:"log_format" validate:"oneof=text json"`
	Timezone          string            `yaml:"timezone" validate:"required,timezone"`
	Currency          string            `yaml:"currency" validate:"required,iso4217"`
	WorkerCategory    string            `yaml:"worker_category" validate:"required,max=16"`
	DefaultUsefulLife int               `yaml:"default_useful_life" validate:"min=1,max=100"`
	Templates         string            `yaml:"templates"`
	LCodeAliases      map[string]string `yaml:"lcode_aliases" validate:"dive,keys,required,endkeys,required,numeric,max=4"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:          "pamana.db",
		TempDir:           os.TempDir(),
		Workers:           4,
		LogLevel:          "info",
		LogFormat:         "text",
		Timezone:          "Asia/Manila",
		Currency:          "PHP",
		WorkerCategory:    "MWA",
		DefaultUsefulLife: 5,
		LCodeAliases:      map[string]string{},
	}
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAMANA_"

// Load reads the configuration. path names an optional YAML file; an empty
// path skips it. envFiles are loaded into the environment first without
// overriding variables already set; when none are given ".env" is tried.
// Missing env files are not an error, a missing YAML file is.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.LCodeAliases == nil {
		cfg.LCodeAliases = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DATABASE":        &c.Database,
		"TEMP_DIR":        &c.TempDir,
		"LOG_LEVEL":       &c.LogLevel,
		"LOG_FORMAT":      &c.LogFormat,
		"TIMEZONE":        &c.Timezone,
		"CURRENCY":        &c.Currency,
		"WORKER_CATEGORY": &c.WorkerCategory,
		"TEMPLATES":       &c.Templates,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"WORKERS":             &c.Workers,
		"DEFAULT_USEFUL_LIFE": &c.DefaultUsefulLife,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, key, v)
		}
		*dst = n
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Location returns the configured report timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
