//go:build !windows

package platform

import (
	"context"
	"errors"
	"runtime"

	"markestedt/slashgg/keybind"
)

// ErrUnsupported is returned by every platform call outside Windows
var ErrUnsupported = errors.New("platform not supported: " + runtime.GOOS)

type unsupported struct{}

func (unsupported) Listen(context.Context, KeyCombo, Interceptor) (<-chan Event, error) {
	return nil, ErrUnsupported
}

func (unsupported) Get() ([]byte, error) { return nil, ErrUnsupported }
func (unsupported) Set([]byte) error { return ErrUnsupported }
func (unsupported) Swap([]byte) ([]byte, bool, error) { return nil, false, ErrUnsupported }
func (unsupported) Send(...Keystroke) error { return ErrUnsupported }
func (unsupported) KeyName(keybind.KeystrokeFlags) string { return "" }
func (unsupported) ScancodeToVK(uint16) uint32 { return 0 }
func (unsupported) VKToScancode(uint32) uint16 { return 0 }

// NewHotkey returns a hotkey that always fails to listen
func NewHotkey() Hotkey { return unsupported{} }

// NewClipboard returns a clipboard that always fails
func NewClipboard(func() uintptr) Clipboard { return unsupported{} }

// NewInjector returns an injector that always fails
func NewInjector() Injector { return unsupported{} }

// NewKeyNames returns a namer that resolves nothing
func NewKeyNames() keybind.KeyNamer { return unsupported{} }

// HostWindow is unavailable outside Windows
type HostWindow struct{}

// NewHostWindow returns a window that is never found
func NewHostWindow(class, title string) *HostWindow { return &HostWindow{} }

func (w *HostWindow) Handle() uintptr { return 0 }

func (w *HostWindow) PostKey(uint32, keybind.KeystrokeFlags, bool, bool) error {
	return ErrWindowNotFound
}

func (w *HostWindow) PostChar(rune) error { return ErrWindowNotFound }
func (w *HostWindow) Focus() error { return ErrWindowNotFound }
func (w *HostWindow) Foreground() bool { return false }

// MumbleLink is unavailable outside Windows
type MumbleLink struct{}

// OpenMumbleLink always fails outside Windows
func OpenMumbleLink(string) (*MumbleLink, error) { return nil, ErrUnsupported }

func (m *MumbleLink) TextboxFocused() bool { return false }
func (m *MumbleLink) InInstance() bool { return false }
func (m *MumbleLink) Close() error { return nil }
