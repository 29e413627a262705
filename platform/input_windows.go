//go:build windows

package platform

import (
	"fmt"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// WindowsInjector implements the Injector interface with SendInput
type WindowsInjector struct{}

// NewInjector creates a new Windows input injector
func NewInjector() Injector {
	return &WindowsInjector{}
}

// Send injects strokes as one batch. Scan codes are filled in for
// compatibility with games that read them instead of virtual keys.
func (p *WindowsInjector) Send(strokes ...Keystroke) error {
	if len(strokes) == 0 {
		return nil
	}

	inputs := make([]input, len(strokes))
	for i, s := range strokes {
		scan, _, _ := mapVirtualKeyW.Call(uintptr(s.VK), mapvkVkToVsc)

		var flags uint32
		if s.Up {
			flags = keyeventfKeyup
		}

		inputs[i] = input{
			inputType: inputKeyboard,
			ki: keyboardInput{
				wVk:     s.VK,
				wScan:   uint16(scan),
				dwFlags: flags,
			},
		}
	}

	// Send all inputs at once for better atomicity
	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)

	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput injected %d of %d events: %w", ret, len(inputs), err)
	}

	return nil
}
