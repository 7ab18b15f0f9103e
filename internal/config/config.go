package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default budgets: sizes in bytes, the placement (and image) count, and the
// excess tolerance ratio.
const (
	defaultMaxImageFileSize = 20 * 1024 * 1024
	defaultMaxDiskCacheSize = 300 * 1024 * 1024
	defaultMaxImageRAMSize  = 100 * 1024 * 1024
	defaultMaxRAMSize       = 300 * 1024 * 1024
	defaultMaxPlacements    = 4096
	defaultExcessTolerance  = 0.05
)

type Config struct {
	// Image cache budgets.
	MaxImageFileSize int64   `koanf:"max_image_file_size"` // single image file, bytes
	MaxDiskCacheSize int64   `koanf:"max_disk_cache_size"` // total on-disk cache, bytes
	MaxImageRAMSize  int64   `koanf:"max_image_ram_size"`  // single raster, bytes
	MaxRAMSize       int64   `koanf:"max_ram_size"`        // total rasters, bytes
	MaxImages        int     `koanf:"max_images"`          // image count budget
	MaxPlacements    int     `koanf:"max_placements"`      // placement count budget
	ExcessTolerance  float64 `koanf:"excess_tolerance"`    // soft-limit overshoot ratio

	// CacheDir is the base directory for the per-process cache dir.
	// Empty means the platform temp dir.
	CacheDir string `koanf:"cache_dir"`

	// Debug enables per-command tracing and the state dump.
	Debug bool `koanf:"debug"`

	Log LogConfig `koanf:"log"`
}

// LogConfig controls where diagnostics go. With an empty File everything is
// written to stderr, which the emulator is expected to redirect.
type LogConfig struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	Compress   bool   `koanf:"compress"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.CacheDir = expandPath(cfg.CacheDir)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// Default returns the configuration with every budget at its default value.
func Default() *Config {
	return &Config{
		MaxImageFileSize: defaultMaxImageFileSize,
		MaxDiskCacheSize: defaultMaxDiskCacheSize,
		MaxImageRAMSize:  defaultMaxImageRAMSize,
		MaxRAMSize:       defaultMaxRAMSize,
		MaxImages:        defaultMaxPlacements,
		MaxPlacements:    defaultMaxPlacements,
		ExcessTolerance:  defaultExcessTolerance,
		Log: LogConfig{
			Level:     "warning",
			MaxSizeMB: 10,
		},
	}
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/termgfx/config.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, "termgfx", "config.toml"))

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
