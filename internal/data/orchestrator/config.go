// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
)

// Config controls the construction of the orchestrator's stores.
type Config struct {
	ArchivePath string
	CatalogPath string
	// DataDir anchors relative pull paths declared in pipeline specs.
	DataDir string
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		ArchivePath: filepath.Join("data", "archive"),
		CatalogPath: filepath.Join("data", "catalog.db"),
		DataDir:     "",
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("DATADOCS_ARCHIVE_PATH")); value != "" {
		cfg.ArchivePath = value
	}
	if value := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_PATH")); value != "" {
		cfg.CatalogPath = value
	}
	if value := strings.TrimSpace(os.Getenv("DATADOCS_DATA_DIR")); value != "" {
		cfg.DataDir = value
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.ArchivePath) == "" {
		cfg.ArchivePath = defaults.ArchivePath
	}
	if strings.TrimSpace(cfg.CatalogPath) == "" {
		cfg.CatalogPath = defaults.CatalogPath
	}
	return cfg
}
