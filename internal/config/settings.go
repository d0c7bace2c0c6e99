package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Network NetworkSettings `json:"network"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir"`
	ClipboardFallback  bool   `json:"clipboard_fallback"`
	AutoResume         bool   `json:"auto_resume"`
	Theme              int    `json:"theme"`
}

const (
	ThemeAdaptive = 0
	ThemeLight    = 1
	ThemeDark     = 2
)

// NetworkSettings contains download and network parameters.
type NetworkSettings struct {
	Concurrency    int    `json:"concurrency"`
	MaxRetries     int    `json:"max_retries"`
	UserAgent      string `json:"user_agent"`
	AssumedBitrate int64  `json:"assumed_bitrate"`
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	defaultDir := filepath.Join(homeDir, "Downloads")

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			ClipboardFallback:  true,
			AutoResume:         false,
			Theme:              ThemeAdaptive,
		},
		Network: NetworkSettings{
			Concurrency:    types.DefaultConcurrency,
			MaxRetries:     types.DefaultMaxRetries,
			UserAgent:      "", // Empty means use default UA
			AssumedBitrate: types.AssumedBitrate,
		},
	}
}

// GetDataDir returns the per-user application directory, creating it lazily
// on first save. State database and settings both live here.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".hlsget"
	}
	return filepath.Join(homeDir, ".hlsget")
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	data, err := os.ReadFile(GetSettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	path := GetSettingsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// ToRuntimeConfig creates an engine RuntimeConfig from user Settings.
func (s *Settings) ToRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		Concurrency:    s.Network.Concurrency,
		MaxRetries:     s.Network.MaxRetries,
		UserAgent:      s.Network.UserAgent,
		AssumedBitrate: s.Network.AssumedBitrate,
	}
}
