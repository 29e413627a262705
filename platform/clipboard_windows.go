//go:build windows

package platform

import (
	"bytes"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	openClipboard    = user32.NewProc("OpenClipboard")
	closeClipboard   = user32.NewProc("CloseClipboard")
	emptyClipboard   = user32.NewProc("EmptyClipboard")
	getClipboardData = user32.NewProc("GetClipboardData")
	setClipboardData = user32.NewProc("SetClipboardData")
	globalAlloc      = kernel32.NewProc("GlobalAlloc")
	globalFree       = kernel32.NewProc("GlobalFree")
	globalLock       = kernel32.NewProc("GlobalLock")
	globalUnlock     = kernel32.NewProc("GlobalUnlock")
	globalSize       = kernel32.NewProc("GlobalSize")
)

const (
	cfText       = 1
	gmemMoveable = 0x0002
)

// WindowsClipboard implements the Clipboard interface for Windows
type WindowsClipboard struct {
	owner func() uintptr
	tries int
}

// NewClipboard creates a clipboard whose opens are owned by the window returned from owner.
// owner may be nil.
func NewClipboard(owner func() uintptr) Clipboard {
	return &WindowsClipboard{owner: owner, tries: 10}
}

// Get retrieves CF_TEXT from the clipboard
func (c *WindowsClipboard) Get() ([]byte, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	defer c.close()

	data, _ := c.read()
	return data, nil
}

// Set replaces the clipboard with data as CF_TEXT
func (c *WindowsClipboard) Set(data []byte) error {
	h, err := alloc(data)
	if err != nil {
		return err
	}

	if err := c.open(); err != nil {
		globalFree.Call(h)
		return err
	}
	defer c.close()

	return c.write(h)
}

// Swap keeps the previous CF_TEXT and writes data under one open
func (c *WindowsClipboard) Swap(data []byte) ([]byte, bool, error) {
	h, err := alloc(data)
	if err != nil {
		return nil, false, err
	}

	if err := c.open(); err != nil {
		globalFree.Call(h)
		return nil, false, err
	}
	defer c.close()

	previous, captured := c.read()

	if err := c.write(h); err != nil {
		return previous, captured, err
	}

	return previous, captured, nil
}

// read copies the current CF_TEXT payload. The clipboard must be open.
func (c *WindowsClipboard) read() ([]byte, bool) {
	h, _, _ := getClipboardData.Call(cfText)
	if h == 0 {
		return nil, false
	}

	l, _, _ := globalLock.Call(h)
	if l == 0 {
		return nil, false
	}
	defer globalUnlock.Call(h)

	size, _, _ := globalSize.Call(h)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(l)), size)
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) == 0 {
		return nil, false
	}

	return bytes.Clone(raw), true
}

// write hands h to the clipboard. The clipboard must be open.
func (c *WindowsClipboard) write(h uintptr) error {
	emptyClipboard.Call()

	r, _, err := setClipboardData.Call(cfText, h)
	if r == 0 {
		globalFree.Call(h)
		return fmt.Errorf("SetClipboardData failed: %w", err)
	}

	return nil
}

// alloc copies data into a NUL-terminated moveable global buffer
func alloc(data []byte) (uintptr, error) {
	n := len(data) + 1
	h, _, err := globalAlloc.Call(gmemMoveable, uintptr(n))
	if h == 0 {
		return 0, fmt.Errorf("GlobalAlloc failed: %w", err)
	}

	l, _, err := globalLock.Call(h)
	if l == 0 {
		globalFree.Call(h)
		return 0, fmt.Errorf("GlobalLock failed: %w", err)
	}

	dest := unsafe.Slice((*byte)(unsafe.Pointer(l)), n)
	copy(dest, data)
	dest[n-1] = 0

	globalUnlock.Call(h)
	return h, nil
}

func (c *WindowsClipboard) open() error {
	var hwnd uintptr
	if c.owner != nil {
		hwnd = c.owner()
	}

	// Try to open clipboard with retries
	for i := 0; i < c.tries; i++ {
		r, _, _ := openClipboard.Call(hwnd)
		if r != 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("failed to open clipboard after %d tries: %w", c.tries, ErrClipboardUnavailable)
}

func (c *WindowsClipboard) close() {
	closeClipboard.Call()
}
