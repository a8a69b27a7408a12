// Package config loads the settings of a methodscan server from a YAML or
// TOML file, an optional .env file and METHODSCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/broady/methodscan"
	"github.com/broady/methodscan/middleware"
	"github.com/broady/methodscan/provider"
)

// EnvPrefix prefixes the environment variables that override file settings.
const EnvPrefix = "METHODSCAN_"

// Config holds server settings. The zero value is not useful; start from
// Default.
type Config struct {
	URLPattern         string `yaml:"url_pattern" toml:"url_pattern" validate:"required,startswith=/"`
	DocsGroup          string `yaml:"docs_group" toml:"docs_group"`
	Listen             string `yaml:"listen" toml:"listen" validate:"required,hostname_port"`
	Title              string `yaml:"title" toml:"title"`
	Version            string `yaml:"version" toml:"version"`
	MaxRequestBodySize uint64 `yaml:"max_request_body_size" toml:"max_request_body_size"`
	MaskInternalErrors bool   `yaml:"mask_internal_errors" toml:"mask_internal_errors"`
	LogLevel           string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat          string `yaml:"log_format" toml:"log_format" validate:"oneof=text json"`

	// SourcePackages reads method signatures from the owners' packages
	// instead of reflection, which keeps generic parameters, parameter
	// names and doc comments.
	SourcePackages bool `yaml:"source_packages" toml:"source_packages"`

	CORS *middleware.CORSConfig `yaml:"cors" toml:"cors"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		URLPattern:         methodscan.DefaultPathPrefix,
		Listen:             ":8080",
		Title:              "methodscan",
		Version:            "1.0.0",
		MaxRequestBodySize: 1 << 20,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads path over the defaults, picking the decoder from the file
// extension (.yaml, .yml or .toml). An empty path skips the file. A .env
// file next to the working directory is loaded first if present, then
// environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(filepath.Ext(path), data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		_, err := toml.Decode(string(data), c)
		return err
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("URL_PATTERN", &c.URLPattern)
	str("DOCS_GROUP", &c.DocsGroup)
	str("LISTEN", &c.Listen)
	str("TITLE", &c.Title)
	str("VERSION", &c.Version)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v, ok := lookup(EnvPrefix + "MAX_REQUEST_BODY_SIZE"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sMAX_REQUEST_BODY_SIZE: %w", EnvPrefix, err)
		}
		c.MaxRequestBodySize = n
	}
	return errors.Join(
		boolean("MASK_INTERNAL_ERRORS", &c.MaskInternalErrors),
		boolean("SOURCE_PACKAGES", &c.SourcePackages),
	)
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}()

// Validate reports every invalid setting, naming fields by their file keys.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	msgs := make([]string, len(valErrs))
	for i, ve := range valErrs {
		msgs[i] = fmt.Sprintf("%s: failed %q", ve.Field(), ve.Tag())
	}
	return fmt.Errorf("config: invalid settings: %s", strings.Join(msgs, "; "))
}

// Logger builds a slog.Logger writing to w in the configured format and at
// the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewApp returns an App configured with these settings.
func (c *Config) NewApp(logger *slog.Logger) *methodscan.App {
	app := methodscan.NewApp().
		WithPathPrefix(c.URLPattern).
		WithMaxRequestBodySize(c.MaxRequestBodySize).
		WithLogger(logger)
	if c.MaskInternalErrors {
		app.WithMaskInternalErrors()
	}
	if c.SourcePackages {
		app.WithProvider(provider.NewSource(""))
	}
	if c.CORS != nil {
		app.WithMiddleware(middleware.CORS(*c.CORS))
	}
	return app
}
