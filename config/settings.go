package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"

	"markestedt/slashgg/keybind"
)

// Settings file keys
const (
	keyVisible = "IsVisible"
	keyRestore = "RestoreClipboard"
	keyOCKey   = "OC_KEY"
	keyOCAlt   = "OC_ALT"
	keyOCCtrl  = "OC_CTRL"
	keyOCShift = "OC_SHIFT"
)

// SettingsFile is the settings file name inside the config directory
const SettingsFile = "settings.json"

// Settings is the user-facing state persisted as JSON: trigger visibility,
// clipboard restore and the open-chat keybind. It is safe for concurrent use.
type Settings struct {
	path string

	mu       sync.RWMutex
	raw      map[string]json.RawMessage
	visible  bool
	restore  bool
	openChat keybind.Keybind

	lmu       sync.Mutex
	listeners []func()
}

// NewSettings returns default settings that will be stored at path
func NewSettings(path string) *Settings {
	return &Settings{
		path:     path,
		raw:      make(map[string]json.RawMessage),
		visible:  true,
		restore:  true,
		openChat: keybind.Keybind{Key: keybind.ScancodeEnter},
	}
}

// OpenSettings loads settings from path. Problems are logged and defaults kept.
func OpenSettings(path string) *Settings {
	s := NewSettings(path)
	if err := s.Load(); err != nil {
		slog.Warn("Settings could not be loaded, using defaults", "path", path, "error", err)
	}
	return s
}

// Path returns the settings file path
func (s *Settings) Path() string {
	return s.path
}

// Load reads the settings file. A missing file is not an error; keys that are
// absent or hold the wrong type keep their current values.
func (s *Settings) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	if raw == nil {
		raw = make(map[string]json.RawMessage)
	}

	s.mu.Lock()
	s.raw = raw
	decodeKey(raw, keyVisible, &s.visible)
	decodeKey(raw, keyRestore, &s.restore)
	decodeKey(raw, keyOCKey, &s.openChat.Key)
	decodeKey(raw, keyOCAlt, &s.openChat.Alt)
	decodeKey(raw, keyOCCtrl, &s.openChat.Ctrl)
	decodeKey(raw, keyOCShift, &s.openChat.Shift)
	s.mu.Unlock()

	s.notify()
	return nil
}

func decodeKey[T any](raw map[string]json.RawMessage, key string, dst *T) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return
	}

	var decoded T
	if err := json.Unmarshal(v, &decoded); err != nil {
		slog.Warn("Ignoring invalid setting", "key", key, "error", err)
		return
	}
	*dst = decoded
}

// saveLocked writes the settings file, keeping keys this version does not know
func (s *Settings) saveLocked() error {
	out := make(map[string]any, len(s.raw)+6)
	for k, v := range s.raw {
		out[k] = v
	}
	out[keyVisible] = s.visible
	out[keyRestore] = s.restore
	out[keyOCKey] = s.openChat.Key
	out[keyOCAlt] = s.openChat.Alt
	out[keyOCCtrl] = s.openChat.Ctrl
	out[keyOCShift] = s.openChat.Shift

	data, err := json.MarshalIndent(out, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Visible reports whether the trigger control is shown
func (s *Settings) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// RestoreClipboard reports whether the clipboard is restored after a replay
func (s *Settings) RestoreClipboard() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restore
}

// OpenChat returns the keybind that opens chat in the host
func (s *Settings) OpenChat() keybind.Keybind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openChat
}

// SetVisible updates and saves the visibility flag
func (s *Settings) SetVisible(v bool) error {
	return s.update(func() { s.visible = v })
}

// SetRestoreClipboard updates and saves the clipboard restore flag
func (s *Settings) SetRestoreClipboard(v bool) error {
	return s.update(func() { s.restore = v })
}

// SetOpenChat updates and saves the open-chat keybind
func (s *Settings) SetOpenChat(kb keybind.Keybind) error {
	return s.update(func() { s.openChat = kb })
}

func (s *Settings) update(fn func()) error {
	s.mu.Lock()
	fn()
	err := s.saveLocked()
	s.mu.Unlock()

	s.notify()
	return err
}

// OnChange registers fn to run after settings change in memory
func (s *Settings) OnChange(fn func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Settings) notify() {
	s.lmu.Lock()
	listeners := s.listeners
	s.lmu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Watch reloads the settings whenever the file is changed on disk, until ctx is done
func (s *Settings) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(evt.Name) != name || !evt.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := s.Load(); err != nil {
				slog.Warn("Settings reload failed, keeping current values", "error", err)
				continue
			}
			slog.Debug("Settings reloaded", "path", s.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Settings watcher error", "error", err)
		}
	}
}
