package platform

import (
	"context"
	"errors"

	"markestedt/slashgg/keybind"
)

// ErrClipboardUnavailable is returned when the clipboard cannot be opened
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// ErrWindowNotFound is returned when the host window cannot be located
var ErrWindowNotFound = errors.New("host window not found")

// ErrNotForeground is returned when the host window could not be activated
var ErrNotForeground = errors.New("host window is not in the foreground")

// KeyCombo represents a keyboard key combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   int // Virtual key code
}

// EventType represents the type of hotkey event
type EventType int

const (
	Pressed EventType = iota
	Released
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Interceptor sees every raw key message before hotkey matching.
// Returning true swallows the message.
type Interceptor func(msg keybind.KeyMessage) bool

// Hotkey provides global hotkey detection
type Hotkey interface {
	Listen(ctx context.Context, combo KeyCombo, intercept Interceptor) (<-chan Event, error)
}

// Clipboard provides plain text (CF_TEXT) clipboard access.
// Contents are raw bytes without the terminating NUL.
type Clipboard interface {
	Get() ([]byte, error)
	Set(data []byte) error
	// Swap writes data and returns the previous contents under a single open.
	// captured is false when there was nothing readable to keep.
	Swap(data []byte) (previous []byte, captured bool, err error)
}

// Keystroke is one injected key transition
type Keystroke struct {
	VK uint16
	Up bool
}

// Injector synthesizes OS-level input that reaches the focused window
type Injector interface {
	Send(strokes ...Keystroke) error
}

// Window posts key messages directly to the host window
type Window interface {
	PostKey(vk uint32, flags keybind.KeystrokeFlags, down, sys bool) error
	PostChar(r rune) error
	// Focus activates the window; injected input only reaches the foreground window
	Focus() error
}

// HostContext reports the host application's UI state
type HostContext interface {
	TextboxFocused() bool
	InInstance() bool
}
