package kconfig

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "kernelnerd" {
		t.Errorf("expected Name=kernelnerd, got %s", cfg.Name)
	}
	if cfg.Unify.MaxDepth != 256 {
		t.Errorf("expected MaxDepth=256, got %d", cfg.Unify.MaxDepth)
	}
	if cfg.UnfoldAll {
		t.Error("expected UnfoldAll=false by default")
	}
}

func TestConfigSaveLoad(t *testing.T) {
	t.Setenv("KERNELNERD_MAX_UNIFY_DEPTH", "")
	t.Setenv("KERNELNERD_LOG_LEVEL", "")
	t.Setenv("KERNELNERD_DEBUG", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kernel.yaml")

	cfg := DefaultConfig()
	cfg.Unify.MaxDepth = 64
	cfg.Unfoldable = []string{"id", "compose"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Unify.MaxDepth != 64 {
		t.Errorf("expected MaxDepth=64, got %d", loaded.Unify.MaxDepth)
	}
	if len(loaded.Unfoldable) != 2 || loaded.Unfoldable[0] != "id" {
		t.Errorf("expected unfoldable=[id compose], got %v", loaded.Unfoldable)
	}
}

func TestConfigLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load on missing file should not error, got: %v", err)
	}
	if cfg.Unify.MaxDepth != 256 {
		t.Errorf("expected default MaxDepth=256, got %d", cfg.Unify.MaxDepth)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KERNELNERD_MAX_UNIFY_DEPTH", "99")
	t.Setenv("KERNELNERD_DEBUG", "true")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Unify.MaxDepth != 99 {
		t.Errorf("expected MaxDepth=99, got %d", cfg.Unify.MaxDepth)
	}
	if !cfg.Logging.DebugMode {
		t.Error("expected DebugMode=true from KERNELNERD_DEBUG")
	}
}

func TestIsUnfoldable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unfoldable = []string{"id"}

	if !cfg.IsUnfoldable("id") {
		t.Error("expected id to be unfoldable")
	}
	if cfg.IsUnfoldable("other") {
		t.Error("expected other to not be unfoldable")
	}

	cfg.UnfoldAll = true
	if !cfg.IsUnfoldable("anything") {
		t.Error("expected UnfoldAll to permit any name")
	}
}

func TestApplyToLoggingNoWorkspaceIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyToLogging(""); err != nil {
		t.Fatalf("ApplyToLogging with empty workspace should not error: %v", err)
	}
}
