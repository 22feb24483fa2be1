package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(20<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, 20, cfg.Upload.MaxBatchFiles)
	assert.Equal(t, 2*time.Hour, cfg.Upload.DatasetTTL)
	assert.NoError(t, cfg.validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero max file size", func(c *Config) { c.Upload.MaxFileSize = 0 }},
		{"zero batch files", func(c *Config) { c.Upload.MaxBatchFiles = 0 }},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestValidateFixesZeroWorkers(t *testing.T) {
	cfg := Default()
	cfg.Upload.BatchWorkers = 0
	require.NoError(t, cfg.validate())
	assert.Equal(t, 1, cfg.Upload.BatchWorkers)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9090\nupload:\n  max_batch_files: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := loadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Upload.MaxBatchFiles)
	// Fields the file omits keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Paths.LogsDir = filepath.Join(t.TempDir(), "logs")

	paths, err := ResolvePaths(cfg)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	assert.DirExists(t, paths.UploadsDir)
	assert.DirExists(t, paths.ArchiveDir)
	assert.Equal(t, filepath.Join(paths.UploadsDir, "x.xlsx"), paths.UploadPath("x.xlsx"))
	assert.Equal(t, filepath.Join(paths.ArchiveDir, "j.zip"), paths.ArchivePath("j.zip"))
}
