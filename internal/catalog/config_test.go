// File path: internal/catalog/config_test.go
package catalog

import (
	"testing"
	"time"
)

func TestLoadConfigMergesEnvOverrides(t *testing.T) {
	t.Setenv("DATADOCS_CATALOG_PATH", "/tmp/alt-catalog.db")
	t.Setenv("DATADOCS_CATALOG_MAX_OPEN_CONNS", "3")
	t.Setenv("DATADOCS_CATALOG_BUSY_TIMEOUT", "9s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Path != "/tmp/alt-catalog.db" {
		t.Fatalf("path override lost: %q", cfg.Path)
	}
	if cfg.MaxOpenConns != 3 {
		t.Fatalf("max open conns override lost: %d", cfg.MaxOpenConns)
	}
	if cfg.BusyTimeout != 9*time.Second {
		t.Fatalf("busy timeout override lost: %v", cfg.BusyTimeout)
	}
	if cfg.MaxIdleConns != DefaultConfig().MaxIdleConns {
		t.Fatalf("unrelated default clobbered: %d", cfg.MaxIdleConns)
	}
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("DATADOCS_CATALOG_MAX_OPEN_CONNS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error for malformed conn count")
	}
}

func TestMergeIgnoresZeroOverrides(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Config{Path: "  ", MaxOpenConns: 0})
	if merged != base {
		t.Fatalf("zero-valued override changed config: %+v", merged)
	}
}
