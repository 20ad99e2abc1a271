package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds trustmap configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Fetch  FetchConfig  `toml:"fetch"`
	Layout LayoutConfig `toml:"layout"`
	View   ViewConfig   `toml:"view"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
	Serve  ServeConfig  `toml:"serve"`
}

// APIConfig controls the remote graph source.
type APIConfig struct {
	BaseURL   string   `toml:"base_url"`
	Client    string   `toml:"client"` // X-Ethos-Client header value
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int      `toml:"burst"`
}

// FetchConfig holds the neighbourhood budgets.
type FetchConfig struct {
	PageSize          int `toml:"page_size"`
	NodeBudget        int `toml:"node_budget"`
	RecordBudget      int `toml:"record_budget"`
	RingTwoProfiles   int `toml:"ring_two_profiles"`
	InterRingProfiles int `toml:"inter_ring_profiles"`
	MinFreeSlots      int `toml:"min_free_slots"`
	Concurrency       int `toml:"concurrency"`
}

// LayoutConfig tunes the force simulation.
type LayoutConfig struct {
	LinkDistance     float64 `toml:"link_distance"`
	LinkPerLevel     float64 `toml:"link_per_level"`
	RootCharge       float64 `toml:"root_charge"`
	NodeCharge       float64 `toml:"node_charge"` // divided by level+1
	CenterStrength   float64 `toml:"center_strength"`
	RootRadius       float64 `toml:"root_radius"`
	NodeRadius       float64 `toml:"node_radius"`
	RingRadius       float64 `toml:"ring_radius"`
	RingGap          float64 `toml:"ring_gap"`
	RadialStrength   float64 `toml:"radial_strength"`
	WarmStart        bool    `toml:"warm_start"`
	TicksPerSecond   int     `toml:"ticks_per_second"`
	HeadlessMaxTicks int     `toml:"headless_max_ticks"`
}

// ViewConfig controls the interaction controller.
type ViewConfig struct {
	MinZoom       float64  `toml:"min_zoom"`
	MaxZoom       float64  `toml:"max_zoom"`
	ResetDuration Duration `toml:"reset_duration"`
	MaxWidth      float64  `toml:"max_width"`
	Chrome        float64  `toml:"chrome"`
	DefaultRings  []int    `toml:"default_rings"`
	MountAttempts int      `toml:"mount_attempts"`
	MountDelay    Duration `toml:"mount_delay"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend string   `toml:"backend"` // "file", "badger", "none"
	TTL     Duration `toml:"ttl"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "console" or "json"
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// ServeConfig controls the embedded web server.
type ServeConfig struct {
	Port  int    `toml:"port"`
	Theme string `toml:"theme"` // "dark" or "light"
}

// Duration is a time.Duration that reads and writes as a TOML string ("15s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.ethos.network",
			Client:    "trustmap",
			Timeout:   Duration{15 * time.Second},
			RateLimit: 10,
			Burst:     10,
		},
		Fetch: FetchConfig{
			PageSize:          100,
			NodeBudget:        200,
			RecordBudget:      500,
			RingTwoProfiles:   10,
			InterRingProfiles: 10,
			MinFreeSlots:      5,
			Concurrency:       10,
		},
		Layout: LayoutConfig{
			LinkDistance:     80,
			LinkPerLevel:     40,
			RootCharge:       -1500,
			NodeCharge:       -600,
			CenterStrength:   0.05,
			RootRadius:       40,
			NodeRadius:       22,
			RingRadius:       0,
			RingGap:          160,
			RadialStrength:   0.8,
			WarmStart:        true,
			TicksPerSecond:   60,
			HeadlessMaxTicks: 600,
		},
		View: ViewConfig{
			MinZoom:       0.5,
			MaxZoom:       4,
			ResetDuration: Duration{750 * time.Millisecond},
			MaxWidth:      1200,
			Chrome:        160,
			DefaultRings:  []int{2},
			MountAttempts: 5,
			MountDelay:    Duration{100 * time.Millisecond},
		},
		Cache: CacheConfig{Backend: "file", TTL: Duration{10 * time.Minute}},
		Log:   LogConfig{Level: "info", Format: "console", MaxSizeMB: 10, MaxBackups: 3},
		Serve: ServeConfig{Port: 7420, Theme: "dark"},
	}
}

// ConfigDir returns the trustmap config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "trustmap")
}

// Path returns the user config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// findProjectConfig walks up from the working directory looking for .trustmap.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".trustmap.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads the user config and then any project .trustmap.toml on top of it.
// Missing or unreadable files leave defaults in place. TRUSTMAP_API_URL
// overrides the API base URL.
func Load() *Config {
	cfg := Default()

	if data, err := os.ReadFile(Path()); err == nil {
		_ = toml.Unmarshal(data, cfg)
	}
	if project := findProjectConfig(); project != "" {
		if data, err := os.ReadFile(project); err == nil {
			_ = toml.Unmarshal(data, cfg)
		}
	}
	if url := os.Getenv("TRUSTMAP_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	if _, err := os.Stat(Path()); err == nil {
		return nil // already exists
	}
	return Save(Default())
}
