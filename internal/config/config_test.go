package config

import (
	"os"
	"path/filepath"
	"testing"

	"tftfb/internal/platform"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Panel != "ili9225" || cfg.HostPageSize != 4096 || cfg.RefreshHz != 20 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := st.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "panel: tls8301s\nbus: sim\nrefresh_hz: 0\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Panel != "tls8301s" {
		t.Errorf("Panel = %q", cfg.Panel)
	}
	if cfg.Supply != "2v8" {
		t.Errorf("Supply = %q, want default 2v8", cfg.Supply)
	}
	if cfg.RefreshHz != 20 {
		t.Errorf("RefreshHz = %d, want 20", cfg.RefreshHz)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadSupplySpellings(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"3v3", "3v3", false},
		{"3.3v", "3v3", false},
		{"3V3", "3v3", false},
		{"3.3", "3v3", false},
		{" 2.8V ", "2v8", false},
		{"2v8", "2v8", false},
		{"", "2v8", false},
		{"5v", "5v", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			yml := "bus: sim\nsupply: \"" + tt.in + "\"\n"
			if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Supply != tt.want {
				t.Errorf("Supply = %q, want %q", cfg.Supply, tt.want)
			}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultTimingMatchesPlatform(t *testing.T) {
	got := DefaultConfig().Timing
	want := platform.DefaultTiming()
	if got.Base != want.Base || got.Config != want.Config || got.WaitRd != want.WaitRd || got.Turn != want.Turn {
		t.Errorf("Timing = %+v, want %+v", got, want)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Supply = "3v3"
	cfg.Source = &SourceConfig{URL: "http://127.0.0.1/panel", Cron: "*/5 * * * *"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Supply != "3v3" || got.Source == nil || got.Source.Cron != "*/5 * * * *" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Timing.WaitRd != 31 {
		t.Errorf("Timing.WaitRd = %d, want 31", got.Timing.WaitRd)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown bus", func(c *Config) { c.Bus = "spi" }, true},
		{"mmio without base", func(c *Config) { c.Control.Base = 0 }, true},
		{"sim without base", func(c *Config) { c.Bus = "sim"; c.Control.Base = 0 }, false},
		{"source without cron", func(c *Config) { c.Source = &SourceConfig{URL: "http://x"} }, true},
		{"overlapping regions", func(c *Config) { c.Data.Base = c.Control.Base + 1 }, true},
		{"adjacent regions", func(c *Config) { c.Data.Base = c.Control.Base + 2 }, false},
		{"unknown supply", func(c *Config) { c.Supply = "5v" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
