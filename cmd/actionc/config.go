package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/actionc/actionc/internal/config"
	"github.com/actionc/actionc/pkg/compiler"
	"github.com/actionc/actionc/pkg/runner"
)

var (
	schemaFlag  string
	actionsFlag string
)

// loadProjectConfig reads .actionc.yml from the working directory,
// falling back to defaults when absent.
func loadProjectConfig() *config.Config {
	loader := config.NewLoader(".")
	if !loader.Exists() {
		return config.Default()
	}
	cfg, err := loader.Load()
	if err != nil {
		printWarning("Could not read %s, using defaults: %v", config.ConfigFileName, err)
		return config.Default()
	}
	if verbose {
		printInfo("Using %s configuration file", config.ConfigFileName)
	}
	return cfg
}

// loadSchema loads entity metadata from the flag or the configured
// path.
func loadSchema(cfg *config.Config) (*compiler.Schema, error) {
	path := schemaFlag
	if path == "" {
		path = cfg.Paths.Schema
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found: %s", path)
	}
	if verbose {
		printInfo("Loading schema from %s...", path)
	}
	return compiler.LoadSchemaFile(path)
}

// resolveActionFiles returns the action definition files to compile:
// explicit arguments win, otherwise every .yml/.yaml under the
// configured actions directory, sorted for stable output.
func resolveActionFiles(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	dir := actionsFlag
	if dir == "" {
		dir = cfg.Paths.Actions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read actions directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no action files found in %s", dir)
	}
	return files, nil
}

// runnerConfig builds the database configuration, preferring
// DATABASE_URL over the config file.
func runnerConfig(cfg *config.Config) runner.Config {
	rc := runner.DefaultConfig()
	rc.DatabaseURL = cfg.ConnectionString()
	rc.MaxConns = cfg.Database.MaxConnections
	rc.MinConns = cfg.Database.MinConnections
	return rc
}
