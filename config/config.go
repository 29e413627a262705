package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Hotkey  HotkeyConfig  `toml:"hotkey"`
	Replay  ReplayConfig  `toml:"replay"`
	Host    HostConfig    `toml:"host"`
	Web     WebConfig     `toml:"web"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

type HotkeyConfig struct {
	Combo string `toml:"combo"`
}

type ReplayConfig struct {
	Message  string `toml:"message"`
	DelayMs  int    `toml:"delay_ms"`
	Model    string `toml:"model"`    // "worker" or "oneshot"
	Sequence string `toml:"sequence"` // "paste" or "type"
}

type HostConfig struct {
	WindowClass  string `toml:"window_class"`
	WindowTitle  string `toml:"window_title"`
	MumbleLink   string `toml:"mumble_link"`
	InstanceOnly bool   `toml:"instance_only"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type StorageConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Combo: "ctrl+k",
		},
		Replay: ReplayConfig{
			Message:  "/gg",
			DelayMs:  15,
			Model:    "worker",
			Sequence: "paste",
		},
		Host: HostConfig{
			WindowClass:  "ArenaNet_Gr_Window_Class",
			WindowTitle:  "",
			MumbleLink:   "MumbleLink",
			InstanceOnly: false,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    7717,
		},
		Storage: StorageConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the directory holding config, settings and history
func ConfigDir() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	}

	configDir := filepath.Join(appData, "slashgg")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadFile loads the configuration from path, creating it with defaults when missing
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Load existing config
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Replay.Message == "" {
		return fmt.Errorf("replay.message must not be empty")
	}
	switch c.Replay.Model {
	case "worker", "oneshot":
	default:
		return fmt.Errorf("replay.model must be \"worker\" or \"oneshot\", got %q", c.Replay.Model)
	}
	switch c.Replay.Sequence {
	case "paste", "type":
	default:
		return fmt.Errorf("replay.sequence must be \"paste\" or \"type\", got %q", c.Replay.Sequence)
	}
	if _, err := ParseHotkey(c.Hotkey.Combo); err != nil {
		return fmt.Errorf("hotkey.combo: %w", err)
	}
	return nil
}

// LogLevel returns the slog level for the configured name, defaulting to info
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// KeyCombo represents a parsed keyboard combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string
}

// ParseHotkey parses a hotkey combo string like "ctrl+k" or "ctrl+win"
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	parts := strings.Split(strings.ToLower(combo), "+")

	if strings.TrimSpace(combo) == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	for i, part := range parts {
		part = strings.TrimSpace(part)

		// Check if this part is a modifier
		isModifier := false
		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
			isModifier = true
		case "shift":
			kc.Shift = true
			isModifier = true
		case "alt":
			kc.Alt = true
			isModifier = true
		case "win", "windows":
			kc.Win = true
			isModifier = true
		}

		// If it's not a modifier and it's the last part, it's the key
		if !isModifier {
			if i == len(parts)-1 {
				kc.Key = part
			} else {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
		}
	}

	// Key is optional - if empty, it's a modifier-only combo
	// But we need at least one modifier
	if !kc.Ctrl && !kc.Shift && !kc.Alt && !kc.Win {
		return kc, fmt.Errorf("no modifiers or key specified in combo")
	}

	return kc, nil
}
