package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the ingestion pipeline.
type Paths struct {
	// LibraryDir is the root of the organized, deterministically named media tree.
	LibraryDir string `toml:"library_dir"`
	// CacheDir holds raw resolved sources keyed by stable id. The resolver is
	// the only writer.
	CacheDir string `toml:"cache_dir"`
	// ScratchDir holds per-entry archive extraction and compositing work.
	ScratchDir string `toml:"scratch_dir"`
	// LogDir receives log files.
	LogDir string `toml:"log_dir"`
	// DatabasePath locates the SQLite catalog.
	DatabasePath string `toml:"database_path"`
	// ExportRoot optionally points at a local export directory consulted
	// before the network.
	ExportRoot string `toml:"export_root"`
}

// Network contains download behavior for the source resolver.
type Network struct {
	TimeoutSeconds int               `toml:"timeout_seconds"`
	RetryAttempts  int               `toml:"retry_attempts"`
	Headers        map[string]string `toml:"headers"`
	CookieFile     string            `toml:"cookie_file"`
}

// Ingest contains pipeline execution settings.
type Ingest struct {
	Workers          int  `toml:"workers"`
	ComputeChecksums bool `toml:"compute_checksums"`
	KeepScratch      bool `toml:"keep_scratch"`
}

// FFmpeg contains external transcoder settings for overlay compositing.
type FFmpeg struct {
	FFmpegBin             string `toml:"ffmpeg_bin"`
	FFprobeBin            string `toml:"ffprobe_bin"`
	FlattenTimeoutSeconds int    `toml:"flatten_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Network Network `toml:"network"`
	Ingest  Ingest  `toml:"ingest"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "snapback", "config.toml"), nil
}

// Load reads the config file at path, layering it over defaults. A missing
// file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.expandPaths()
	return &cfg, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates every configured directory that the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.LibraryDir,
		c.Paths.CacheDir,
		c.Paths.ScratchDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// NetworkTimeout returns the resolver HTTP timeout as a duration.
func (c *Config) NetworkTimeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// FlattenTimeout returns the transcoder time budget as a duration.
func (c *Config) FlattenTimeout() time.Duration {
	return time.Duration(c.FFmpeg.FlattenTimeoutSeconds) * time.Second
}

func (c *Config) expandPaths() {
	c.Paths.LibraryDir = expandPath(c.Paths.LibraryDir)
	c.Paths.CacheDir = expandPath(c.Paths.CacheDir)
	c.Paths.ScratchDir = expandPath(c.Paths.ScratchDir)
	c.Paths.LogDir = expandPath(c.Paths.LogDir)
	c.Paths.DatabasePath = expandPath(c.Paths.DatabasePath)
	c.Paths.ExportRoot = expandPath(c.Paths.ExportRoot)
	c.Network.CookieFile = expandPath(c.Network.CookieFile)
}

func expandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return trimmed
		}
		if trimmed == "~" {
			return home
		}
		return filepath.Join(home, trimmed[2:])
	}
	return trimmed
}
