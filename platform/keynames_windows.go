//go:build windows

package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/slashgg/keybind"
)

var getKeyNameTextW = user32.NewProc("GetKeyNameTextW")

const mapvkVscToVkEx = 3

// WindowsKeyNames resolves key names against the active keyboard layout
type WindowsKeyNames struct{}

// NewKeyNames creates a key namer backed by GetKeyNameTextW and MapVirtualKeyW
func NewKeyNames() keybind.KeyNamer {
	return WindowsKeyNames{}
}

// KeyName returns the layout name for flags, or "" when the layout has none
func (WindowsKeyNames) KeyName(flags keybind.KeystrokeFlags) string {
	var buf [64]uint16
	n, _, _ := getKeyNameTextW.Call(
		uintptr(flags),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// ScancodeToVK maps a scancode, with the extended marker if any, to a virtual key
func (WindowsKeyNames) ScancodeToVK(scancode uint16) uint32 {
	vk, _, _ := mapVirtualKeyW.Call(uintptr(scancode), mapvkVscToVkEx)
	return uint32(vk)
}

// VKToScancode maps a virtual key to its scancode
func (WindowsKeyNames) VKToScancode(vk uint32) uint16 {
	sc, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	return uint16(sc)
}
