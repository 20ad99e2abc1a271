package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Fetch.PageSize != 100 {
		t.Errorf("expected page size 100, got %d", cfg.Fetch.PageSize)
	}
	if cfg.Fetch.NodeBudget != 200 {
		t.Errorf("expected node budget 200, got %d", cfg.Fetch.NodeBudget)
	}
	if cfg.Fetch.RecordBudget != 500 {
		t.Errorf("expected record budget 500, got %d", cfg.Fetch.RecordBudget)
	}
	if cfg.View.MinZoom != 0.5 || cfg.View.MaxZoom != 4 {
		t.Errorf("expected zoom bounds [0.5, 4], got [%v, %v]", cfg.View.MinZoom, cfg.View.MaxZoom)
	}
	if cfg.View.ResetDuration.Duration != 750*time.Millisecond {
		t.Errorf("expected reset duration 750ms, got %v", cfg.View.ResetDuration)
	}
	if cfg.Layout.RadialStrength != 0.8 {
		t.Errorf("expected radial strength 0.8, got %v", cfg.Layout.RadialStrength)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("expected cache backend 'file', got %q", cfg.Cache.Backend)
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	dir := ConfigDir()
	if dir != "/tmp/test-xdg/trustmap" {
		t.Errorf("expected /tmp/test-xdg/trustmap, got %q", dir)
	}

	// Test without XDG_CONFIG_HOME
	t.Setenv("XDG_CONFIG_HOME", "")
	dir = ConfigDir()
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "trustmap")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("TRUSTMAP_API_URL", "")
	t.Chdir(tmpDir)

	cfg := Default()
	cfg.Fetch.NodeBudget = 120
	cfg.Cache.TTL = Duration{time.Hour}
	cfg.Layout.WarmStart = false

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := Load()
	if loaded.Fetch.NodeBudget != 120 {
		t.Errorf("expected node budget 120, got %d", loaded.Fetch.NodeBudget)
	}
	if loaded.Cache.TTL.Duration != time.Hour {
		t.Errorf("expected ttl 1h, got %v", loaded.Cache.TTL)
	}
	if loaded.Layout.WarmStart {
		t.Error("expected warm_start false after load")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("TRUSTMAP_API_URL", "http://localhost:9999")
	t.Chdir(tmpDir)

	if got := Load().API.BaseURL; got != "http://localhost:9999" {
		t.Errorf("expected env override, got %q", got)
	}
}

func TestEnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	path := filepath.Join(tmpDir, "trustmap", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	// Second call should be no-op
	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists second call failed: %v", err)
	}
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "a", "b", "c")
	os.MkdirAll(subDir, 0o755)

	// Write .trustmap.toml in the root tmpDir
	os.WriteFile(filepath.Join(tmpDir, ".trustmap.toml"), []byte("[fetch]\nnode_budget = 50\n"), 0o644)

	// Change to the deep subdirectory
	t.Chdir(subDir)

	found := findProjectConfig()
	// Resolve symlinks (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(filepath.Join(tmpDir, ".trustmap.toml"))
	foundResolved, _ := filepath.EvalSymlinks(found)
	if foundResolved != expectedResolved {
		t.Errorf("expected %q, got %q", expectedResolved, foundResolved)
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if got := Load().Fetch.NodeBudget; got != 50 {
		t.Errorf("expected project override 50, got %d", got)
	}
}
