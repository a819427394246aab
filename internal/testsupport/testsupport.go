// Package testsupport centralizes helpers for package tests: temp-dir
// configs and throwaway catalog stores.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"snapback/internal/catalog"
	"snapback/internal/config"
)

// NewConfig returns a validated config rooted in a fresh temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.LibraryDir = filepath.Join(root, "organized")
	cfg.Paths.CacheDir = filepath.Join(root, "raw")
	cfg.Paths.ScratchDir = filepath.Join(root, "scratch")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.DatabasePath = filepath.Join(root, "manifests", "snapback.db")
	cfg.Paths.ExportRoot = filepath.Join(root, "export")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.ExportRoot, 0o755); err != nil {
		t.Fatalf("create export root: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return cfg
}

// MustOpenStore opens a catalog store for the config and closes it when the
// test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
