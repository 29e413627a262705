//go:build windows

package platform

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/slashgg/keybind"
)

var (
	findWindowW         = user32.NewProc("FindWindowW")
	isWindow            = user32.NewProc("IsWindow")
	isIconic            = user32.NewProc("IsIconic")
	showWindow          = user32.NewProc("ShowWindow")
	getForegroundWindow = user32.NewProc("GetForegroundWindow")
	setForegroundWindow = user32.NewProc("SetForegroundWindow")
	postMessageW        = user32.NewProc("PostMessageW")
)

const (
	wmChar    = 0x0102
	swRestore = 9

	// Activation is asynchronous; wait up to focusPolls * focusPollInterval
	focusPolls        = 20
	focusPollInterval = 5 * time.Millisecond
)

// HostWindow posts messages to the first top-level window matching class and title
type HostWindow struct {
	class string
	title string

	mu   sync.Mutex
	hwnd uintptr
}

// NewHostWindow creates a host window handle resolver. Empty class or title matches any.
func NewHostWindow(class, title string) *HostWindow {
	return &HostWindow{class: class, title: title}
}

// Handle returns the cached window handle, looking it up again if it went away
func (w *HostWindow) Handle() uintptr {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.hwnd != 0 {
		if ok, _, _ := isWindow.Call(w.hwnd); ok != 0 {
			return w.hwnd
		}
		w.hwnd = 0
	}

	var classPtr, titlePtr *uint16
	if w.class != "" {
		classPtr, _ = windows.UTF16PtrFromString(w.class)
	}
	if w.title != "" {
		titlePtr, _ = windows.UTF16PtrFromString(w.title)
	}

	h, _, _ := findWindowW.Call(
		uintptr(unsafe.Pointer(classPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
	)
	w.hwnd = h
	return h
}

// Foreground reports whether the host window is the active window
func (w *HostWindow) Foreground() bool {
	hwnd := w.Handle()
	if hwnd == 0 {
		return false
	}
	fg, _, _ := getForegroundWindow.Call()
	return fg == hwnd
}

// Focus brings the host window to the foreground so injected input reaches it
func (w *HostWindow) Focus() error {
	hwnd := w.Handle()
	if hwnd == 0 {
		return ErrWindowNotFound
	}

	if fg, _, _ := getForegroundWindow.Call(); fg == hwnd {
		return nil
	}

	if minimized, _, _ := isIconic.Call(hwnd); minimized != 0 {
		showWindow.Call(hwnd, swRestore)
	}
	setForegroundWindow.Call(hwnd)

	for i := 0; i < focusPolls; i++ {
		if fg, _, _ := getForegroundWindow.Call(); fg == hwnd {
			return nil
		}
		time.Sleep(focusPollInterval)
	}
	return ErrNotForeground
}

// PostKey posts a key or system key message with the given payload
func (w *HostWindow) PostKey(vk uint32, flags keybind.KeystrokeFlags, down, sys bool) error {
	msg := uint32(wmKeydown)
	switch {
	case down && sys:
		msg = wmSyskeydown
	case !down && sys:
		msg = wmSyskeyup
	case !down:
		msg = wmKeyup
	}

	return w.post(msg, uintptr(vk), uintptr(flags))
}

// PostChar posts r as one or two character messages
func (w *HostWindow) PostChar(r rune) error {
	for _, unit := range utf16.Encode([]rune{r}) {
		if err := w.post(wmChar, uintptr(unit), 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *HostWindow) post(msg uint32, wParam, lParam uintptr) error {
	hwnd := w.Handle()
	if hwnd == 0 {
		return ErrWindowNotFound
	}

	r, _, err := postMessageW.Call(hwnd, uintptr(msg), wParam, lParam)
	if r == 0 {
		return fmt.Errorf("PostMessage %#x failed: %w", msg, err)
	}
	return nil
}
