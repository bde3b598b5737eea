package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.HistoryCap != 30 {
		t.Errorf("history cap = %d, want 30", cfg.Scheduler.HistoryCap)
	}
	if cfg.Extract.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Extract.MaxAttempts)
	}
	if cfg.Search.Country != "in" {
		t.Errorf("country = %q, want in", cfg.Search.Country)
	}
	if cfg.Match.MaxResults != 3 {
		t.Errorf("max results = %d, want 3", cfg.Match.MaxResults)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricewatch.yaml")
	data := []byte(`
database_path: /tmp/test.db
scheduler:
  interval: 5m
  max_concurrent: 8
extract:
  max_attempts: 2
smtp:
  host: mail.example.com
  from: alerts@example.com
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("database_path = %q", cfg.DatabasePath)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.MaxConcurrent != 8 {
		t.Errorf("max_concurrent = %d, want 8", cfg.Scheduler.MaxConcurrent)
	}
	// Unset fields still receive defaults.
	if cfg.Scheduler.HistoryCap != 30 {
		t.Errorf("history_cap = %d, want default 30", cfg.Scheduler.HistoryCap)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("smtp port = %d, want default 587", cfg.SMTP.Port)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/pricewatch.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
