// Package config loads the project configuration file (.actionc.yml)
// from the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected project configuration file name.
const ConfigFileName = ".actionc.yml"

// Config is the project configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Paths    PathsConfig    `yaml:"paths"`
	Output   OutputConfig   `yaml:"output"`
}

// DatabaseConfig holds connection settings for install and run.
type DatabaseConfig struct {
	// ConnectionString is overridden by DATABASE_URL when set.
	ConnectionString string `yaml:"connection_string"`
	MaxConnections   int32  `yaml:"max_connections"`
	MinConnections   int32  `yaml:"min_connections"`
}

// PathsConfig names the authoring inputs.
type PathsConfig struct {
	// Schema is the entity metadata file (YAML or JSON).
	Schema string `yaml:"schema"`
	// Actions is the directory of action definition files.
	Actions string `yaml:"actions"`
}

// OutputConfig controls compiled artifact placement.
type OutputConfig struct {
	// Dir receives one .sql file per compiled action.
	Dir string `yaml:"dir"`
	// Manifest enables writing the impact manifest next to each
	// procedure.
	Manifest bool `yaml:"manifest"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Loader reads the configuration from a working directory.
type Loader struct {
	workDir  string
	filePath string
}

// NewLoader creates a loader rooted at workDir.
func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir:  workDir,
		filePath: filepath.Join(workDir, ConfigFileName),
	}
}

// Load reads and parses the configuration file.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s", l.filePath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Exists reports whether the configuration file is present.
func (l *Loader) Exists() bool {
	_, err := os.Stat(l.filePath)
	return err == nil
}

func (c *Config) applyDefaults() {
	if c.Paths.Schema == "" {
		c.Paths.Schema = "schema.yml"
	}
	if c.Paths.Actions == "" {
		c.Paths.Actions = "actions"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "build"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 10
	}
	if c.Database.MinConnections == 0 {
		c.Database.MinConnections = 2
	}
}

// ConnectionString resolves the database connection string, preferring
// the DATABASE_URL environment variable over the config file.
func (c *Config) ConnectionString() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.ConnectionString
}
