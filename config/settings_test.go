package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"markestedt/slashgg/keybind"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	s := OpenSettings(filepath.Join(t.TempDir(), SettingsFile))

	if !s.Visible() {
		t.Error("Visible() default = false, want true")
	}
	if !s.RestoreClipboard() {
		t.Error("RestoreClipboard() default = false, want true")
	}
	if want := (keybind.Keybind{Key: keybind.ScancodeEnter}); !s.OpenChat().Equal(want) {
		t.Errorf("OpenChat() default = %+v, want %+v", s.OpenChat(), want)
	}
}

func TestSettingsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	writeFile(t, path, `{
		// hand edited
		"IsVisible": false,
		"RestoreClipboard": false,
		"OC_KEY": 20,
		"OC_ALT": true,
		"OC_CTRL": false,
		"OC_SHIFT": true,
	}`)

	s := NewSettings(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Visible() || s.RestoreClipboard() {
		t.Errorf("flags = %v, %v; want false, false", s.Visible(), s.RestoreClipboard())
	}
	if want := (keybind.Keybind{Key: 20, Alt: true, Shift: true}); !s.OpenChat().Equal(want) {
		t.Errorf("OpenChat() = %+v, want %+v", s.OpenChat(), want)
	}
}

func TestSettingsMissingKeysKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	writeFile(t, path, `{"OC_CTRL": true, "IsVisible": null}`)

	s := OpenSettings(path)

	if !s.Visible() || !s.RestoreClipboard() {
		t.Error("missing keys should keep their defaults")
	}
	if want := (keybind.Keybind{Key: keybind.ScancodeEnter, Ctrl: true}); !s.OpenChat().Equal(want) {
		t.Errorf("OpenChat() = %+v, want %+v", s.OpenChat(), want)
	}
}

func TestSettingsMalformedKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	writeFile(t, path, `{"IsVisible": false, "OC_KEY": `)

	s := NewSettings(path)
	if err := s.Load(); err == nil {
		t.Fatal("Load() on malformed JSON should return an error")
	}

	if !s.Visible() {
		t.Error("malformed settings should leave defaults in place")
	}

	// OpenSettings must not fail either
	if !OpenSettings(path).Visible() {
		t.Error("OpenSettings should fall back to defaults")
	}
}

func TestSettingsInvalidValueIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	writeFile(t, path, `{"OC_KEY": -4, "OC_ALT": "yes", "RestoreClipboard": false}`)

	s := OpenSettings(path)

	if s.RestoreClipboard() {
		t.Error("valid keys should still load")
	}
	if want := (keybind.Keybind{Key: keybind.ScancodeEnter}); !s.OpenChat().Equal(want) {
		t.Errorf("OpenChat() = %+v, want %+v", s.OpenChat(), want)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SettingsFile)

	keys := []uint16{1, 0x1E, 0x3B, 255}
	for _, key := range keys {
		for mods := 0; mods < 8; mods++ {
			kb := keybind.Keybind{
				Key:   key,
				Alt:   mods&1 != 0,
				Ctrl:  mods&2 != 0,
				Shift: mods&4 != 0,
			}

			if err := NewSettings(path).SetOpenChat(kb); err != nil {
				t.Fatalf("SetOpenChat(%+v) error = %v", kb, err)
			}

			got := OpenSettings(path).OpenChat()
			if !got.Equal(kb) {
				t.Errorf("reloaded keybind = %+v, want %+v", got, kb)
			}
		}
	}
}

func TestSettingsSavePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	writeFile(t, path, `{"WindowPosition": {"x": 10, "y": 20}, "IsVisible": true}`)

	s := OpenSettings(path)
	if err := s.SetVisible(false); err != nil {
		t.Fatalf("SetVisible() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("saved settings are not JSON: %v", err)
	}

	if _, ok := got["WindowPosition"]; !ok {
		t.Error("unknown key WindowPosition was dropped")
	}
	if got["IsVisible"] != false {
		t.Errorf("IsVisible = %v, want false", got["IsVisible"])
	}
	for _, key := range []string{"RestoreClipboard", "OC_KEY", "OC_ALT", "OC_CTRL", "OC_SHIFT"} {
		if _, ok := got[key]; !ok {
			t.Errorf("saved settings missing %s", key)
		}
	}
}

func TestSettingsOnChange(t *testing.T) {
	s := NewSettings(filepath.Join(t.TempDir(), SettingsFile))

	calls := 0
	s.OnChange(func() { calls++ })

	s.SetRestoreClipboard(false)
	s.SetOpenChat(keybind.Keybind{})

	if calls != 2 {
		t.Errorf("OnChange called %d times, want 2", calls)
	}
	if !s.OpenChat().IsUnbound() {
		t.Error("OpenChat() should be unbound after storing the sentinel")
	}
}

func TestSettingsWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	s := OpenSettings(path)

	changed := make(chan struct{}, 8)
	s.OnChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, `{"IsVisible": false}`)

	deadline := time.After(5 * time.Second)
	for s.Visible() {
		select {
		case <-changed:
		case <-deadline:
			t.Fatal("settings were not reloaded after the file changed")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
