package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoader(t *testing.T) {
	workDir := "/test/work/dir"
	loader := NewLoader(workDir)

	if loader == nil {
		t.Fatal("Expected non-nil loader")
	}

	expectedPath := filepath.Join(workDir, ".actionc.yml")
	if loader.filePath != expectedPath {
		t.Errorf("Expected filePath %s, got %s", expectedPath, loader.filePath)
	}

	if loader.workDir != workDir {
		t.Errorf("Expected workDir %s, got %s", workDir, loader.workDir)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	loader := NewLoader(tmpDir)

	_, err := loader.Load()
	if err == nil {
		t.Fatal("Expected error when config file doesn't exist")
	}

	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".actionc.yml")

	configContent := `version: "0.1.0"
database:
  connection_string: "postgresql://localhost:5432/test"
  max_connections: 10

paths:
  schema: "./schema.yml"
  actions: "./actions"

output:
  dir: "./build"
  manifest: true
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loader := NewLoader(tmpDir)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Version != "0.1.0" {
		t.Errorf("Expected version 0.1.0, got %s", cfg.Version)
	}

	if cfg.Database.ConnectionString != "postgresql://localhost:5432/test" {
		t.Errorf("Unexpected connection string: %s", cfg.Database.ConnectionString)
	}

	if cfg.Database.MaxConnections != 10 {
		t.Errorf("Expected max_connections 10, got %d", cfg.Database.MaxConnections)
	}

	if !cfg.Output.Manifest {
		t.Error("Expected manifest output to be enabled")
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".actionc.yml")

	err := os.WriteFile(configPath, []byte(`version: "0.1.0"`), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loader := NewLoader(tmpDir)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Paths.Schema != "schema.yml" {
		t.Errorf("Expected default schema path, got %s", cfg.Paths.Schema)
	}
	if cfg.Paths.Actions != "actions" {
		t.Errorf("Expected default actions path, got %s", cfg.Paths.Actions)
	}
	if cfg.Output.Dir != "build" {
		t.Errorf("Expected default output dir, got %s", cfg.Output.Dir)
	}
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("Expected default max_connections, got %d", cfg.Database.MaxConnections)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".actionc.yml")

	invalidYAML := `version: "0.1.0"
database:
  connection_string: [this is invalid yaml syntax
`

	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loader := NewLoader(tmpDir)
	_, err = loader.Load()
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestConnectionString_EnvOverride(t *testing.T) {
	cfg := &Config{}
	cfg.Database.ConnectionString = "postgresql://file:5432/db"

	t.Setenv("DATABASE_URL", "postgresql://env:5432/db")
	if got := cfg.ConnectionString(); got != "postgresql://env:5432/db" {
		t.Errorf("Expected env override, got %s", got)
	}

	t.Setenv("DATABASE_URL", "")
	if got := cfg.ConnectionString(); got != "postgresql://file:5432/db" {
		t.Errorf("Expected file value, got %s", got)
	}
}
