package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.FuzzyPenalty != 0.8 {
		t.Errorf("FuzzyPenalty = %v, want 0.8", cfg.Search.FuzzyPenalty)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.Cache.TTL)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	content := "database_path: /tmp/wiki.db\nsearch:\n  minimum_match_score: 1.5\n  title_weight: 2.0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabasePath != "/tmp/wiki.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Search.MinimumMatchScore != 1.5 {
		t.Errorf("MinimumMatchScore = %v, want 1.5", cfg.Search.MinimumMatchScore)
	}
	if cfg.Search.TitleWeight != 2.0 {
		t.Errorf("TitleWeight = %v, want 2.0", cfg.Search.TitleWeight)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
