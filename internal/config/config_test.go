package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.Concurrency != 5 {
		t.Errorf("concurrency: got %d, want 5", cfg.Fetch.Concurrency)
	}
	if cfg.Decode.ScanWindow != 4000 || cfg.Decode.SwapThreshold != 256 {
		t.Errorf("decode: got %+v", cfg.Decode)
	}
	if cfg.Annotation.HandleRadius != 8 || cfg.Annotation.MarkerRadius != 14 {
		t.Errorf("annotation radii: got %+v", cfg.Annotation)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameview.yaml")
	data := []byte(`
fetch:
  urlTemplate: "http://pacs.local/frames/%s"
  concurrency: 2
view:
  maxScale: 12
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Fetch.URLTemplate != "http://pacs.local/frames/%s" {
		t.Errorf("urlTemplate: got %q", cfg.Fetch.URLTemplate)
	}
	if cfg.Fetch.Concurrency != 2 {
		t.Errorf("concurrency: got %d, want 2", cfg.Fetch.Concurrency)
	}
	if cfg.Fetch.TimeoutSeconds != 30 {
		t.Errorf("timeout should keep its default, got %d", cfg.Fetch.TimeoutSeconds)
	}
	if cfg.View.MaxScale != 12 {
		t.Errorf("maxScale: got %v, want 12", cfg.View.MaxScale)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("fetch: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		check  func(t *testing.T, c *Config)
	}{
		{
			name:   "non-positive concurrency",
			mutate: func(c *Config) { c.Fetch.Concurrency = 0 },
			check: func(t *testing.T, c *Config) {
				if c.Fetch.Concurrency != 5 {
					t.Errorf("got %d, want 5", c.Fetch.Concurrency)
				}
			},
		},
		{
			name:   "swap threshold above 16 bits",
			mutate: func(c *Config) { c.Decode.SwapThreshold = 70000 },
			check: func(t *testing.T, c *Config) {
				if c.Decode.SwapThreshold != 256 {
					t.Errorf("got %d, want 256", c.Decode.SwapThreshold)
				}
			},
		},
		{
			name:   "marker smaller than handle",
			mutate: func(c *Config) { c.Annotation.HandleRadius = 20; c.Annotation.MarkerRadius = 4 },
			check: func(t *testing.T, c *Config) {
				if c.Annotation.MarkerRadius != 20 {
					t.Errorf("got %v, want 20", c.Annotation.MarkerRadius)
				}
			},
		},
		{
			name:   "inverted scale range",
			mutate: func(c *Config) { c.View.MinScale = 5; c.View.MaxScale = 1 },
			check: func(t *testing.T, c *Config) {
				if c.View.MaxScale != 40 {
					t.Errorf("got %v, want 40", c.View.MaxScale)
				}
			},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Log.Level = "chatty" },
			check: func(t *testing.T, c *Config) {
				if c.Log.Level != "info" {
					t.Errorf("got %q, want info", c.Log.Level)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestValidate_BadColor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Annotation.Color = "not-a-color"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an invalid color")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "frameview.yaml")
	cfg := DefaultConfig()
	cfg.Annotation.DefaultText = "Note"
	cfg.Fetch.URLTemplate = "http://example/%s"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Annotation.DefaultText != "Note" || loaded.Fetch.URLTemplate != "http://example/%s" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestLogLevel_Env(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.LogLevel(); got != slog.LevelInfo {
		t.Errorf("default: got %v, want info", got)
	}

	t.Setenv(LogLevelEnv, "debug")
	if got := cfg.LogLevel(); got != slog.LevelDebug {
		t.Errorf("env override: got %v, want debug", got)
	}

	t.Setenv(LogLevelEnv, "nonsense")
	if got := cfg.LogLevel(); got != slog.LevelInfo {
		t.Errorf("bad env should fall back, got %v", got)
	}
}
