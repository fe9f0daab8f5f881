package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cartwright/internal/config"
	"cartwright/pkg/pipeline"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".cache", "cartwright")
	if dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-cache", "cartwright")
	if dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestRootCommand(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != "cartwright" {
		t.Errorf("root.Use = %q, want %q", root.Use, "cartwright")
	}

	want := []string{"build", "validate", "preview", "serve", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing %q subcommand", name)
		}
	}
}

func TestMergeBuildDefaults(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.cfg = &config.Config{
		Defaults: config.Defaults{
			Title:   "Config Title",
			BaseURL: "https://cfg.example.com",
			Section: "Misc",
			Workers: 9,
		},
	}

	cmd := c.buildCommand()
	if err := cmd.Flags().Set("title", "Flag Title"); err != nil {
		t.Fatal(err)
	}

	opts := pipeline.Options{}
	c.mergeBuildDefaults(cmd, &opts)

	// The title flag was set, so the config value must not override it.
	if opts.Title != "" {
		t.Errorf("opts.Title = %q, want empty (flag takes precedence)", opts.Title)
	}
	if opts.BaseURL != "https://cfg.example.com" {
		t.Errorf("opts.BaseURL = %q, want config value", opts.BaseURL)
	}
	if opts.DefaultSection != "Misc" {
		t.Errorf("opts.DefaultSection = %q, want %q", opts.DefaultSection, "Misc")
	}
	if opts.Workers != 9 {
		t.Errorf("opts.Workers = %d, want 9", opts.Workers)
	}
}

func TestMergeFormatDefault(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.cfg = &config.Config{Defaults: config.Defaults{Format: "rise"}}

	cmd := c.buildCommand()
	opts := pipeline.Options{}
	c.mergeFormatDefault(cmd, &opts)
	if opts.Format != "rise" {
		t.Errorf("opts.Format = %q, want %q", opts.Format, "rise")
	}

	cmd = c.buildCommand()
	if err := cmd.Flags().Set("format", "csv"); err != nil {
		t.Fatal(err)
	}
	opts = pipeline.Options{}
	c.mergeFormatDefault(cmd, &opts)
	if opts.Format != "" {
		t.Errorf("opts.Format = %q, want empty (flag takes precedence)", opts.Format)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := New(io.Discard, LogInfo)
	cfg := c.loadConfig()

	if cfg.Server.Addr != config.Default().Server.Addr {
		t.Errorf("loadConfig() addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadConfigBroken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "cartwright", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	cfg := c.loadConfig()

	// A broken config file falls back to defaults with a warning.
	if cfg.Server.Addr != config.Default().Server.Addr {
		t.Errorf("loadConfig() addr = %q, want default", cfg.Server.Addr)
	}
	if !strings.Contains(buf.String(), "Ignoring unusable config file") {
		t.Error("loadConfig() should warn about the broken file")
	}
}

func TestCacheLocationConfigured(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.cfg = &config.Config{Cache: config.Cache{Dir: "/var/cache/cartwright"}}

	dir, err := c.cacheLocation()
	if err != nil {
		t.Fatalf("cacheLocation() error: %v", err)
	}
	if dir != "/var/cache/cartwright" {
		t.Errorf("cacheLocation() = %q, want configured dir", dir)
	}
}
