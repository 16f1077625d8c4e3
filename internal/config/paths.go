package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute file system locations used by the
// pipeline. It is the single source of truth for file paths.
type Paths struct {
	BaseDir    string
	DataDir    string
	ReportsDir string
	LogsDir    string

	// Well-known files
	DatasetCSV   string
	DatabaseFile string
}

// ResolvePaths resolves the configured paths against BaseDir (or the working
// directory when BaseDir is empty)
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	dataDir := resolve(c.Paths.DataDir)
	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		ReportsDir:   resolve(c.Paths.ReportsDir),
		LogsDir:      resolve(c.Paths.LogsDir),
		DatasetCSV:   resolve(c.Paths.DatasetCSV),
		DatabaseFile: filepath.Join(dataDir, DefaultDatabaseFile),
	}, nil
}

// StoreLocation returns the DSN for the configured store driver, falling
// back to the default database file or data directory when none is set
func (c *Config) StoreLocation(p *Paths) string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	switch c.Store.Driver {
	case DriverCSV:
		return filepath.Join(p.DataDir, "tables")
	default:
		return p.DatabaseFile
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ReportsDir,
		p.LogsDir,
		filepath.Dir(p.DatasetCSV),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("dataset_csv", p.DatasetCSV),
			slog.String("database", p.DatabaseFile),
		))
}
