// Package config - Application configuration for the detection CLI and daemon.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/models"
)

// Config represents the application configuration.
type Config struct {
	Log      logger.Config    `json:"log"      yaml:"log"`
	Provider providers.Config `json:"provider" yaml:"provider"`
	Pipeline PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Server   ServerConfig     `json:"server"   yaml:"server"`
}

// PipelineConfig contains the detection pipeline configuration.
type PipelineConfig struct {
	inference.Config `yaml:",inline"`

	// ClassSet names a built-in label set (object, face, yolo, voc). It
	// replaces the classes list when set.
	ClassSet string `json:"class_set" yaml:"class_set"`
}

// ServerConfig contains HTTP service configuration.
type ServerConfig struct {
	Addr            string        `json:"addr"             yaml:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"    yaml:"write_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"  yaml:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes"   yaml:"max_body_bytes"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Log:      logger.DefaultConfig(),
		Provider: providers.DefaultConfig(),
		Pipeline: PipelineConfig{Config: inference.DefaultConfig()},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  20 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    20 << 20,
		},
	}
}

// Load reads and parses the configuration file on top of Default.
//
// Arguments:
//   - path: The YAML file. Empty returns the defaults.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read configuration file")
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.resolveClasses(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML into cfg. Fields absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to parse configuration")
	}
	return nil
}

// resolveClasses replaces the pipeline classes with a named class set.
func (c *Config) resolveClasses() error {
	if c.Pipeline.ClassSet == "" {
		return nil
	}
	set, err := models.DefaultClasses.Lookup(models.Family(c.Pipeline.ClassSet))
	if err != nil {
		return errors.Wrapf(err, "pipeline.class_set (known: %s)", strings.Join(models.DefaultClasses.Families(), ", "))
	}
	c.Pipeline.Classes = set.Labels()
	return nil
}

// ClassSet returns the label set of the pipeline classes.
func (c *Config) ClassSet() (*models.ClassSet, error) {
	family := models.Family(c.Pipeline.ClassSet)
	if family == "" {
		family = "custom"
	}
	return models.NewClassSet(family, c.Pipeline.Classes)
}

// Validate validates the configuration with detailed error messages.
//
// Returns:
//   - error: All problems found, nil if the configuration is valid.
func (c *Config) Validate() error {
	var problems []string

	if err := c.Log.Validate(); err != nil {
		problems = append(problems, "log: "+err.Error())
	}
	if err := c.Pipeline.Config.Validate(); err != nil {
		problems = append(problems, "pipeline: "+err.Error())
	}
	if _, err := c.ClassSet(); err != nil {
		problems = append(problems, "pipeline: "+err.Error())
	}
	if _, err := providers.ParseBackend(string(c.Provider.Backend)); err != nil {
		problems = append(problems, "provider: "+err.Error())
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, fmt.Sprintf("server.max_body_bytes must be positive, got: %d", c.Server.MaxBodyBytes))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"read_timeout", c.Server.ReadTimeout},
		{"write_timeout", c.Server.WriteTimeout},
		{"request_timeout", c.Server.RequestTimeout},
		{"shutdown_timeout", c.Server.ShutdownTimeout},
	} {
		if t.d < 0 {
			problems = append(problems, fmt.Sprintf("server.%s must be >= 0, got: %v", t.name, t.d))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
