package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	if root := strings.TrimSpace(c.Paths.ExportRoot); root != "" {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("paths.export_root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("paths.export_root %s is not a directory", root)
		}
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.TimeoutSeconds <= 0 {
		return errors.New("network.timeout_seconds must be positive")
	}
	if c.Network.RetryAttempts < 1 {
		return errors.New("network.retry_attempts must be at least 1")
	}
	for key := range c.Network.Headers {
		if strings.TrimSpace(key) == "" {
			return errors.New("network.headers contains an empty header name")
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Workers < 1 {
		return errors.New("ingest.workers must be at least 1")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if strings.TrimSpace(c.FFmpeg.FFmpegBin) == "" {
		return errors.New("ffmpeg.ffmpeg_bin must be set")
	}
	if strings.TrimSpace(c.FFmpeg.FFprobeBin) == "" {
		return errors.New("ffmpeg.ffprobe_bin must be set")
	}
	if c.FFmpeg.FlattenTimeoutSeconds <= 0 {
		return errors.New("ffmpeg.flatten_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
