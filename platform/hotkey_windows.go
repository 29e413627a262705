//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/slashgg/keybind"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	peekMessage         = user32.NewProc("PeekMessageW")
	getAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

const (
	whKeyboardLL  = 13
	wmKeydown     = 0x0100
	wmKeyup       = 0x0101
	wmSyskeydown  = 0x0104
	wmSyskeyup    = 0x0105
	pmRemove      = 0x0001
	llkhfExtended = 0x01
)

const (
	vkShift = 0x10
	vkCtrl  = 0x11
	vkAlt   = 0x12
	vkLwin  = 0x5B // Left Windows key
	vkRwin  = 0x5C // Right Windows key
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsHotkey implements the Hotkey interface with a low-level keyboard hook
type WindowsHotkey struct {
	mu        sync.Mutex
	combo     KeyCombo
	intercept Interceptor
	pressed   bool
	events    chan Event
	hook      uintptr
	done      chan struct{}
}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{}
}

// Listen starts listening for the specified key combination.
// intercept, when non-nil, sees every key message first and may swallow it.
func (h *WindowsHotkey) Listen(ctx context.Context, combo KeyCombo, intercept Interceptor) (<-chan Event, error) {
	h.mu.Lock()
	h.combo = combo
	h.intercept = intercept
	h.pressed = false
	h.events = make(chan Event, 10)
	h.done = make(chan struct{})
	h.mu.Unlock()

	// Start hook in a goroutine
	errCh := make(chan error, 1)
	go h.runHook(errCh)

	// Wait for hook to be installed or error
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Monitor context cancellation
	go func() {
		<-ctx.Done()
		close(h.done)
	}()

	return h.events, nil
}

func (h *WindowsHotkey) runHook(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			if h.handleKeyEvent(wParam, kbInfo) {
				return 1
			}
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(hookProc),
		0,
		0,
	)

	if hook == 0 {
		errCh <- fmt.Errorf("SetWindowsHookEx failed: %w", err)
		return
	}

	h.mu.Lock()
	h.hook = hook
	h.mu.Unlock()

	errCh <- nil

	// The hook is owned by this thread, so it has to pump and unhook here
	var m msg
	for {
		select {
		case <-h.done:
			unhookWindowsHookEx.Call(hook)
			return
		default:
			r, _, _ := peekMessage.Call(
				uintptr(unsafe.Pointer(&m)),
				0,
				0,
				0,
				pmRemove,
			)
			if r != 0 {
				continue
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// handleKeyEvent reports whether the message must be swallowed
func (h *WindowsHotkey) handleKeyEvent(wParam uintptr, kbInfo *kbdllhookstruct) bool {
	isKeyDown := wParam == wmKeydown || wParam == wmSyskeydown

	if h.intercept != nil {
		kind := keybind.KeyUp
		switch wParam {
		case wmKeydown:
			kind = keybind.KeyDown
		case wmSyskeydown:
			kind = keybind.SysKeyDown
		case wmSyskeyup:
			kind = keybind.SysKeyUp
		}

		km := keybind.KeyMessage{
			Kind:  kind,
			VK:    kbInfo.vkCode,
			Flags: keybind.NewKeystrokeFlags(uint16(kbInfo.scanCode)).WithExtended(kbInfo.flags&llkhfExtended != 0),
			Alt:   h.isKeyPressed(vkAlt),
			Ctrl:  h.isKeyPressed(vkCtrl),
			Shift: h.isKeyPressed(vkShift),
		}
		if h.intercept(km) {
			return true
		}
	}

	// Check if this is a modifier-only combo (Key == 0)
	if h.combo.Key == 0 {
		if !h.isComboModifier(kbInfo.vkCode) {
			return false
		}
	} else if kbInfo.vkCode != uint32(h.combo.Key) {
		return false
	}

	if isKeyDown {
		if h.checkModifiers() {
			h.transition(true)
		}
	} else {
		h.transition(false)
	}
	return false
}

func (h *WindowsHotkey) isComboModifier(vk uint32) bool {
	switch {
	case h.combo.Ctrl && (vk == vkCtrl || vk == keybind.VKLControl || vk == keybind.VKRControl):
		return true
	case h.combo.Shift && (vk == vkShift || vk == keybind.VKLShift || vk == keybind.VKRShift):
		return true
	case h.combo.Alt && (vk == vkAlt || vk == keybind.VKLMenu || vk == keybind.VKRMenu):
		return true
	case h.combo.Win && (vk == vkLwin || vk == vkRwin):
		return true
	}
	return false
}

// transition emits Pressed or Released when the pressed state changes
func (h *WindowsHotkey) transition(pressed bool) {
	h.mu.Lock()
	if h.pressed == pressed {
		h.mu.Unlock()
		return
	}
	h.pressed = pressed
	h.mu.Unlock()

	evt := Event{Type: Released}
	if pressed {
		evt.Type = Pressed
	}

	select {
	case h.events <- evt:
	default:
	}
}

func (h *WindowsHotkey) checkModifiers() bool {
	ctrl := h.isKeyPressed(vkCtrl)
	shift := h.isKeyPressed(vkShift)
	alt := h.isKeyPressed(vkAlt)
	win := h.isKeyPressed(vkLwin) || h.isKeyPressed(vkRwin)

	return ctrl == h.combo.Ctrl &&
		shift == h.combo.Shift &&
		alt == h.combo.Alt &&
		win == h.combo.Win
}

func (h *WindowsHotkey) isKeyPressed(vk int) bool {
	r, _, _ := getAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
