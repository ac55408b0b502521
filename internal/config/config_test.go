package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ThumbnailMaxEdge != 500 {
		t.Errorf("expected default thumbnail_max_edge 500, got %d", cfg.ThumbnailMaxEdge)
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("expected default max_workers 2, got %d", cfg.MaxWorkers)
	}
	if cfg.ThumbnailCacheSize != 256 {
		t.Errorf("expected default thumbnail_cache_size 256, got %d", cfg.ThumbnailCacheSize)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := `{"thumbnail_max_edge": 320, "max_workers": 4, "image_extensions": [".jpg", ".png"]}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ThumbnailMaxEdge != 320 {
		t.Errorf("expected thumbnail_max_edge 320, got %d", cfg.ThumbnailMaxEdge)
	}
	if cfg.MaxWorkers != 4 {
		t.Errorf("expected max_workers 4, got %d", cfg.MaxWorkers)
	}
	// Unset scalar falls back to default
	if cfg.ThumbnailCacheSize != 256 {
		t.Errorf("expected default thumbnail_cache_size, got %d", cfg.ThumbnailCacheSize)
	}
	if len(cfg.ImageExtensions) != 2 || cfg.ImageExtensions[0] != ".jpg" {
		t.Errorf("unexpected image_extensions: %v", cfg.ImageExtensions)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{broken"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(tmpDir); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestMergeOverlayWins(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{MaxWorkers: 8, DBMaxOpenConns: 1}
	merged := Merge(base, overlay)

	if merged.MaxWorkers != 8 {
		t.Errorf("expected overlay max_workers 8, got %d", merged.MaxWorkers)
	}
	if merged.DBMaxOpenConns != 1 {
		t.Errorf("expected overlay db_max_open_conns 1, got %d", merged.DBMaxOpenConns)
	}
	if merged.ThumbnailMaxEdge != 500 {
		t.Errorf("expected base thumbnail_max_edge 500, got %d", merged.ThumbnailMaxEdge)
	}
}
