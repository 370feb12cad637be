package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/brensch/packgrab/internal/packs"
)

// Version is reported by the CLI and sent in the default User-Agent.
const Version = "0.3.0"

const (
	// DefaultWorkers is the number of extractions allowed to run at once.
	DefaultWorkers = 3
	// DefaultQueueSize bounds how many downloaded packs may wait for an
	// extraction slot before the downloader blocks.
	DefaultQueueSize = 10
	// MemoryEventsDB keeps the run ledger in memory.
	MemoryEventsDB = ":memory:"
)

// Config holds application settings. It is built once at startup and handed
// to the pipeline by pointer; nothing mutates it afterwards.
type Config struct {
	OutputDir    string  `toml:"-"`
	Workers      int     `toml:"workers"`
	QueueSize    int     `toml:"queue_size"`
	BaseURL      string  `toml:"base_url"`
	UserAgent    string  `toml:"user_agent"`
	TempDir      string  `toml:"temp_dir"`
	DownloadRate float64 `toml:"download_rate"` // requests per second, 0 = unlimited
	EventsDB     string  `toml:"events_db"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workers:   DefaultWorkers,
		QueueSize: DefaultQueueSize,
		BaseURL:   packs.DefaultBaseURL,
		UserAgent: "packgrab/" + Version,
		EventsDB:  MemoryEventsDB,
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults; a path that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s does not exist", path)
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize fills zero values left by a partial config file.
func (c *Config) normalize() {
	def := Default()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.EventsDB == "" {
		c.EventsDB = def.EventsDB
	}
}

// Validate checks the settings the pipeline depends on.
func (c Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize))
	}
	if c.DownloadRate < 0 {
		errs = append(errs, fmt.Errorf("download rate cannot be negative, got %v", c.DownloadRate))
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) url", c.BaseURL))
	}
	return errors.Join(errs...)
}
