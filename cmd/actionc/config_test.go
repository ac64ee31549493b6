package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actionc/actionc/internal/config"
)

func TestResolveActionFiles_ExplicitArgsWin(t *testing.T) {
	cfg := config.Default()

	files, err := resolveActionFiles(cfg, []string{"actions/qualify_lead.yml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"actions/qualify_lead.yml"}, files)
}

func TestResolveActionFiles_DirectoryListing(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"zulu.yml", "alpha.yaml", "readme.md", "mike.yml"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0644))
	}

	cfg := config.Default()
	cfg.Paths.Actions = tmpDir

	files, err := resolveActionFiles(cfg, nil)
	require.NoError(t, err)

	// sorted, yaml only
	want := []string{
		filepath.Join(tmpDir, "alpha.yaml"),
		filepath.Join(tmpDir, "mike.yml"),
		filepath.Join(tmpDir, "zulu.yml"),
	}
	assert.Equal(t, want, files)
}

func TestResolveActionFiles_EmptyDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.Actions = t.TempDir()

	_, err := resolveActionFiles(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no action files found")
}

func TestRunnerConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg := config.Default()
	cfg.Database.ConnectionString = "postgresql://app@db:5432/crm"
	cfg.Database.MaxConnections = 20
	cfg.Database.MinConnections = 5

	rc := runnerConfig(cfg)
	assert.Equal(t, "postgresql://app@db:5432/crm", rc.DatabaseURL)
	assert.Equal(t, int32(20), rc.MaxConns)
	assert.Equal(t, int32(5), rc.MinConns)
}
