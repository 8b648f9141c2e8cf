package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tftfb/internal/platform"
)

// RegionConfig describes one physical I/O window (control or data port).
type RegionConfig struct {
	Base uint64 `yaml:"base" json:"base"`
	Size int    `yaml:"size" json:"size"`
}

// TimingConfig holds the static memory controller timings written once before
// the ports are mapped. Values are controller clock cycles.
type TimingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Base    uint64 `yaml:"base" json:"base"`
	Config  uint32 `yaml:"config" json:"config"`
	WaitWen uint32 `yaml:"wait_wen" json:"wait_wen"`
	WaitOen uint32 `yaml:"wait_oen" json:"wait_oen"`
	WaitRd  uint32 `yaml:"wait_rd" json:"wait_rd"`
	WaitPg  uint32 `yaml:"wait_page" json:"wait_page"`
	WaitWr  uint32 `yaml:"wait_wr" json:"wait_wr"`
	Turn    uint32 `yaml:"wait_turn" json:"wait_turn"`
}

// SourceConfig is an optional web page rendered onto the panel on a schedule.
type SourceConfig struct {
	URL      string `yaml:"url" json:"url"`
	Selector string `yaml:"selector" json:"selector"`
	Cron     string `yaml:"cron" json:"cron"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Panel selects the controller descriptor: "ili9225" or "tls8301s".
	Panel string `yaml:"panel" json:"panel"`

	// Supply selects the ILI9225 power/gamma tuning: "3v3" or "2v8".
	Supply string `yaml:"supply" json:"supply"`

	// Bus is "mmio" for memory-mapped ports or "sim" for the simulator.
	Bus string `yaml:"bus" json:"bus"`

	Control RegionConfig `yaml:"control" json:"control"`
	Data    RegionConfig `yaml:"data" json:"data"`

	// HostPageSize is the framebuffer page granularity in bytes.
	HostPageSize int `yaml:"host_page_size" json:"host_page_size"`

	// RefreshHz is the deferred flush cadence.
	RefreshHz int `yaml:"refresh_hz" json:"refresh_hz"`

	// SettleMicros is the delay used by slow register accesses.
	SettleMicros int `yaml:"settle_us" json:"settle_us"`

	// BacklightPin is a periph GPIO name (e.g. "GPIO18"); empty disables it.
	BacklightPin string `yaml:"backlight_pin" json:"backlight_pin"`

	Timing TimingConfig `yaml:"timing" json:"timing"`

	// LockDir holds the per-region lock files used to claim ports exclusively.
	LockDir string `yaml:"lock_dir" json:"lock_dir"`

	Listen string `yaml:"listen" json:"listen"`

	// FullRefreshCron, if set, periodically resets the write cursor and
	// flushes every page.
	FullRefreshCron string `yaml:"full_refresh" json:"full_refresh"`

	Source *SourceConfig `yaml:"source,omitempty" json:"source,omitempty"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in configuration for an LPC313x board with
// the ILI9225 on static memory bank 0.
func DefaultConfig() *Config {
	t := platform.DefaultTiming()
	return &Config{
		Panel:        "ili9225",
		Supply:       "2v8",
		Bus:          "mmio",
		Control:      RegionConfig{Base: 0x20000000, Size: 2},
		Data:         RegionConfig{Base: 0x20020000, Size: 2},
		HostPageSize: 4096,
		RefreshHz:    20,
		SettleMicros: 1000,
		Timing: TimingConfig{
			Enabled: true,
			Base:    t.Base,
			Config:  t.Config,
			WaitWen: t.WaitWen,
			WaitOen: t.WaitOen,
			WaitRd:  t.WaitRd,
			WaitPg:  t.WaitPg,
			WaitWr:  t.WaitWr,
			Turn:    t.Turn,
		},
		LockDir:  "/run/tftfb",
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Panel == "" {
		c.Panel = def.Panel
	}
	c.Supply = canonicalSupply(c.Supply)
	if c.Supply == "" {
		c.Supply = def.Supply
	}
	if c.Bus == "" {
		c.Bus = def.Bus
	}
	if c.Control.Base == 0 && c.Data.Base == 0 {
		c.Control.Base, c.Data.Base = def.Control.Base, def.Data.Base
	}
	if c.Control.Size <= 0 {
		c.Control.Size = def.Control.Size
	}
	if c.Data.Size <= 0 {
		c.Data.Size = def.Data.Size
	}
	if c.HostPageSize <= 0 {
		c.HostPageSize = def.HostPageSize
	}
	if c.RefreshHz <= 0 {
		c.RefreshHz = def.RefreshHz
	}
	if c.SettleMicros < 0 {
		c.SettleMicros = 0
	}
	if c.LockDir == "" {
		c.LockDir = def.LockDir
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// canonicalSupply maps the accepted supply spellings to "3v3" or "2v8".
// Unknown values are returned trimmed and lower-cased so Validate can
// reject them.
func canonicalSupply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "3v3", "3.3v", "3.3":
		return "3v3"
	case "2v8", "2.8v", "2.8":
		return "2v8"
	}
	return s
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	if s := c.Supply; s != "" && s != "3v3" && s != "2v8" {
		return fmt.Errorf("config: unknown supply %q (want 3v3 or 2v8)", s)
	}
	switch c.Bus {
	case "mmio", "sim":
	default:
		return fmt.Errorf("config: unknown bus %q", c.Bus)
	}
	if c.Bus == "mmio" && (c.Control.Base == 0 || c.Data.Base == 0) {
		return errors.New("config: mmio bus needs control and data base addresses")
	}
	if c.Control.Base < c.Data.Base+uint64(c.Data.Size) && c.Data.Base < c.Control.Base+uint64(c.Control.Size) {
		return fmt.Errorf("config: control %#x and data %#x regions overlap", c.Control.Base, c.Data.Base)
	}
	if c.Source != nil && c.Source.URL != "" && c.Source.Cron == "" {
		return errors.New("config: source.cron is required when source.url is set")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tftfb-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
