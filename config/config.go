package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileConfig holds the codec defaults applied when opening or saving files
type FileConfig struct {
	// PPQN to rescale loaded files to; 0 keeps each file's own resolution
	PPQN int `json:"ppqn,omitempty"`

	// LegacyFormat writes the proprietary footer without meta-event framing
	LegacyFormat bool `json:"legacyFormat,omitempty"`

	// GlobalBackgroundSequence stores musical key/scale/background sequence
	// in the footer
	GlobalBackgroundSequence bool `json:"globalBackgroundSequence,omitempty"`

	// CaptureSysex keeps sysex payloads when loading
	CaptureSysex bool `json:"captureSysex,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastScreenSet int  `json:"lastScreenSet,omitempty"`
	DebugLog      bool `json:"debugLog,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	File        FileConfig `json:"file,omitempty"`
	UI          UIConfig   `json:"ui,omitempty"`
	RecentFiles []string   `json:"recentFiles,omitempty"`
}

// maxRecentFiles caps the recent-file list
const maxRecentFiles = 10

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		File: FileConfig{
			PPQN: 192,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-seqfile"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AddRecentFile moves or inserts a path at the front of the recent list
func (c *Config) AddRecentFile(path string) {
	out := []string{path}
	for _, p := range c.RecentFiles {
		if p != path && len(out) < maxRecentFiles {
			out = append(out, p)
		}
	}
	c.RecentFiles = out
}
