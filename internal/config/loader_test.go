package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if !cfg.Import.CheckDuplicates {
		t.Fatalf("expected duplicate checking to default on")
	}
	if cfg.CRM.CreateTimeout != 60*time.Second {
		t.Fatalf("unexpected create timeout %s", cfg.CRM.CreateTimeout)
	}
	if cfg.Database.Enabled {
		t.Fatalf("expected database to be disabled by default")
	}
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`crm:
  webhook: https://example.bitrix24.com/rest/1/abc
  search_timeout: 5s
import:
  check_duplicates: false
database:
  enabled: true
  port: 6543
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CRMIMPORT_SERVER_ADDR", ":9090")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.CRM.Webhook != "https://example.bitrix24.com/rest/1/abc" {
		t.Fatalf("unexpected webhook %q", cfg.CRM.Webhook)
	}
	if cfg.CRM.SearchTimeout != 5*time.Second {
		t.Fatalf("unexpected search timeout %s", cfg.CRM.SearchTimeout)
	}
	if cfg.Import.CheckDuplicates {
		t.Fatalf("expected duplicate checking to be disabled")
	}
	if !cfg.Database.Enabled || cfg.Database.Port != 6543 {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Database.Host != "localhost" {
		t.Fatalf("expected default host to survive, got %q", cfg.Database.Host)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected env override for server addr, got %q", cfg.Server.Addr)
	}
}
