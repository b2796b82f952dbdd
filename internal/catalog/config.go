// File path: internal/catalog/config.go
package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the SQLite catalog connection pool.
type Config struct {
	Path string

	MaxOpenConns int
	MaxIdleConns int

	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConfig returns the pool settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Path:            "data/catalog.db",
		MaxOpenConns:    8,
		MaxIdleConns:    8,
		ConnMaxLifetime: 15 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

// Merge overlays non-zero fields from the override onto the base config.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Path) != "" {
		result.Path = strings.TrimSpace(override.Path)
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if override.ConnMaxLifetime > 0 {
		result.ConnMaxLifetime = override.ConnMaxLifetime
	}
	if override.ConnMaxIdleTime > 0 {
		result.ConnMaxIdleTime = override.ConnMaxIdleTime
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	return result
}

// LoadConfig overlays DATADOCS_CATALOG_* environment variables onto the
// defaults via Merge.
func LoadConfig() (Config, error) {
	override := Config{Path: strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_PATH"))}
	if raw := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_MAX_OPEN_CONNS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATADOCS_CATALOG_MAX_OPEN_CONNS: %w", err)
		}
		override.MaxOpenConns = value
	}
	if raw := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_MAX_IDLE_CONNS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATADOCS_CATALOG_MAX_IDLE_CONNS: %w", err)
		}
		override.MaxIdleConns = value
	}
	if raw := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_CONN_MAX_LIFETIME")); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATADOCS_CATALOG_CONN_MAX_LIFETIME: %w", err)
		}
		override.ConnMaxLifetime = dur
	}
	if raw := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_CONN_MAX_IDLE_TIME")); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATADOCS_CATALOG_CONN_MAX_IDLE_TIME: %w", err)
		}
		override.ConnMaxIdleTime = dur
	}
	if raw := strings.TrimSpace(os.Getenv("DATADOCS_CATALOG_BUSY_TIMEOUT")); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATADOCS_CATALOG_BUSY_TIMEOUT: %w", err)
		}
		override.BusyTimeout = dur
	}
	return DefaultConfig().Merge(override), nil
}
