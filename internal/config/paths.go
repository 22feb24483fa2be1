package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved directory layout the application works in.
// Uploaded workbooks and generated batch archives live under DataDir.
type Paths struct {
	DataDir    string
	UploadsDir string
	ArchiveDir string
	LogsDir    string
}

// ResolvePaths builds the directory layout from configuration, resolving
// relative paths against the working directory.
func ResolvePaths(cfg *Config) (*Paths, error) {
	dataDir, err := filepath.Abs(cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	logsDir, err := filepath.Abs(cfg.Paths.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
	}

	return &Paths{
		DataDir:    dataDir,
		UploadsDir: filepath.Join(dataDir, "uploads"),
		ArchiveDir: filepath.Join(dataDir, "archives"),
		LogsDir:    logsDir,
	}, nil
}

// EnsureDirectories creates all required directories.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.UploadsDir, p.ArchiveDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// UploadPath returns the storage path for an uploaded workbook.
func (p *Paths) UploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// ArchivePath returns the storage path for a generated batch archive.
func (p *Paths) ArchivePath(filename string) string {
	return filepath.Join(p.ArchiveDir, filename)
}
