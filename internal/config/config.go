package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. SLASHC_LOG_DIR.
	EnvPrefix = "SLASHC"

	// DefaultConfigName is looked up in the working directory when no explicit
	// config file is given.
	DefaultConfigName = ".slashc"

	EngineCLI       = "cli"
	EngineDockerAPI = "docker-api"
)

// Config controls where slashc reads its schema, where it writes scratch
// scripts and logs, and how the container is invoked.
type Config struct {
	SchemaPath string `mapstructure:"schema_path" validate:"required"`
	ScratchDir string `mapstructure:"scratch_dir" validate:"required"`
	LogDir     string `mapstructure:"log_dir" validate:"required"`
	OutputDir  string `mapstructure:"output_dir" validate:"required"`
	// SourceRoot is mounted read-only. Empty means the enclosing git work
	// tree, or the working directory outside a repository.
	SourceRoot string `mapstructure:"source_root"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Container ContainerConfig `mapstructure:"container"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
}

// ContainerConfig fixes the in-container layout.
type ContainerConfig struct {
	SourceMount string `mapstructure:"source_mount" validate:"required,startswith=/"`
	OutputMount string `mapstructure:"output_mount" validate:"required,startswith=/"`
	// ScriptMount is where the environment exposes the scratch directory when
	// it is outside both mounts.
	ScriptMount string `mapstructure:"script_mount" validate:"required,startswith=/"`
	Shell       string `mapstructure:"shell" validate:"required,startswith=/"`
}

// RuntimeConfig selects the container runtime implementation.
type RuntimeConfig struct {
	Engine string `mapstructure:"engine" validate:"oneof=cli docker-api"`
	// Binary is the executable used by the cli engine (docker, podman, ...).
	Binary string `mapstructure:"binary" validate:"required"`
}

var validate = validator.New()

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("schema_path", filepath.Join("tools", "schemas", "command.schema.json"))
	v.SetDefault("scratch_dir", filepath.Join(".out", "tmp"))
	v.SetDefault("log_dir", filepath.Join(".out", "logs"))
	v.SetDefault("output_dir", ".out")
	v.SetDefault("source_root", "")
	v.SetDefault("log_level", "warn")

	v.SetDefault("container.source_mount", "/src")
	v.SetDefault("container.output_mount", "/out")
	v.SetDefault("container.script_mount", "/tmp")
	v.SetDefault("container.shell", "/bin/sh")

	v.SetDefault("runtime.engine", EngineCLI)
	v.SetDefault("runtime.binary", "docker")
}

// New returns a viper instance with defaults and environment binding but no
// config file.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from defaults, an optional config file and the
// environment. With an empty configFile, .slashc.yaml in the working
// directory is used when present.
func Load(configFile string) (*Config, error) {
	v := New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case configFile != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file not found: %s", configFile)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromViper(func() *viper.Viper {
		v := viper.New()
		SetDefaults(v)
		return v
	}())
	if err != nil {
		panic(fmt.Sprintf("built-in configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration with its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation failed: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	if len(messages) == 1 {
		return fmt.Errorf("invalid configuration: %s", messages[0])
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(messages, "\n  - "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("field '%s' must be an absolute container path", field)
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, e.Tag())
	}
}
