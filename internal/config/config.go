package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultBytesPerLine = 16
	MaxBytesPerLine     = 64
	maxRecent           = 10
)

// RecentFile remembers where the cursor was when a file was last closed.
type RecentFile struct {
	Path   string `json:"path"`
	Offset uint64 `json:"offset"`
}

// Config holds application configuration.
type Config struct {
	BytesPerLine int          `json:"bytes_per_line"`
	RecentFiles  []RecentFile `json:"recent_files"`
}

func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "hexit", "config.json")
}

func defaults() *Config {
	return &Config{BytesPerLine: DefaultBytesPerLine}
}

// Load reads the config from disk. A missing or unreadable JSON document
// yields the defaults.
func Load() (*Config, error) {
	data, err := os.ReadFile(configPath())
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return defaults(), nil
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	p := configPath()
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	FixOwnership(p)
	return nil
}

func (c *Config) normalize() {
	if c.BytesPerLine < 1 || c.BytesPerLine > MaxBytesPerLine {
		c.BytesPerLine = DefaultBytesPerLine
	}
	if len(c.RecentFiles) > maxRecent {
		c.RecentFiles = c.RecentFiles[:maxRecent]
	}
}

// AddRecent moves path to the front of the recent list with its new
// offset.
func (c *Config) AddRecent(path string, offset uint64) {
	entry := RecentFile{Path: path, Offset: offset}
	for i, rf := range c.RecentFiles {
		if rf.Path == path {
			c.RecentFiles = append(c.RecentFiles[:i], c.RecentFiles[i+1:]...)
			break
		}
	}
	c.RecentFiles = append([]RecentFile{entry}, c.RecentFiles...)
	if len(c.RecentFiles) > maxRecent {
		c.RecentFiles = c.RecentFiles[:maxRecent]
	}
}

// OffsetFor returns the cursor offset remembered for path.
func (c *Config) OffsetFor(path string) (uint64, bool) {
	for _, rf := range c.RecentFiles {
		if rf.Path == path {
			return rf.Offset, true
		}
	}
	return 0, false
}
