//go:build windows

package platform

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Layout of the shared MumbleLink block as published by the game
const (
	linkedMemSize    = 5460
	contextOffset    = 1108
	mapTypeOffset    = contextOffset + 32
	uiStateOffset    = contextOffset + 48
	uiTextboxFocused = 1 << 5
	mapTypeInstance  = 4
)

// MumbleLink reads host UI state from the MumbleLink shared memory block
type MumbleLink struct {
	mu     sync.Mutex
	handle windows.Handle
	view   uintptr
}

// OpenMumbleLink maps the named link block, creating it if the game has not yet
func OpenMumbleLink(name string) (*MumbleLink, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid link name: %w", err)
	}

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, linkedMemSize, namePtr)
	if h == 0 {
		return nil, fmt.Errorf("CreateFileMapping failed: %w", err)
	}

	view, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, linkedMemSize)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile failed: %w", err)
	}

	return &MumbleLink{handle: h, view: view}, nil
}

// TextboxFocused reports whether a game text input has keyboard focus
func (m *MumbleLink) TextboxFocused() bool {
	return m.uint32At(uiStateOffset)&uiTextboxFocused != 0
}

// InInstance reports whether the current map is an instance
func (m *MumbleLink) InInstance() bool {
	return m.uint32At(mapTypeOffset) == mapTypeInstance
}

// Close unmaps the link block
func (m *MumbleLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view == 0 {
		return nil
	}
	windows.UnmapViewOfFile(m.view)
	m.view = 0
	return windows.CloseHandle(m.handle)
}

func (m *MumbleLink) uint32At(offset int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view == 0 {
		return 0
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(m.view)), linkedMemSize)
	return binary.LittleEndian.Uint32(mem[offset : offset+4])
}
