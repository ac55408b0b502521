package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// ThumbnailMaxEdge bounds the longest edge of generated thumbnails, in pixels.
	ThumbnailMaxEdge int `json:"thumbnail_max_edge"`

	// MaxWorkers is the size of the job manager's worker pool.
	MaxWorkers int `json:"max_workers"`

	// ThumbnailCacheSize is the capacity (entries) of the in-memory
	// thumbnail LRU used by catalog readers.
	ThumbnailCacheSize int `json:"thumbnail_cache_size"`

	// ImageExtensions overrides the set of file extensions considered
	// ingestable. Entries must include the leading dot (".jpg").
	// Empty means the built-in default set.
	ImageExtensions []string `json:"image_extensions,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ThumbnailMaxEdge:   500,
		MaxWorkers:         2,
		ThumbnailCacheSize: 256,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of the
// catalog's .photodex directory.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; the extension list is
// replaced wholesale when the overlay provides one.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ThumbnailMaxEdge = overlay.ThumbnailMaxEdge
	if result.ThumbnailMaxEdge == 0 {
		result.ThumbnailMaxEdge = base.ThumbnailMaxEdge
	}

	result.MaxWorkers = overlay.MaxWorkers
	if result.MaxWorkers == 0 {
		result.MaxWorkers = base.MaxWorkers
	}

	result.ThumbnailCacheSize = overlay.ThumbnailCacheSize
	if result.ThumbnailCacheSize == 0 {
		result.ThumbnailCacheSize = base.ThumbnailCacheSize
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.ImageExtensions = overlay.ImageExtensions
	if len(result.ImageExtensions) == 0 {
		result.ImageExtensions = base.ImageExtensions
	}

	return result
}
