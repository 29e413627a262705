package keybind

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotListening is returned by Accept when no capture is in progress
var ErrNotListening = errors.New("keybind capture is not active")

// CaptureState is the state of the keybind capture machine
type CaptureState int

const (
	Idle CaptureState = iota
	Listening
)

func (s CaptureState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	default:
		return fmt.Sprintf("CaptureState(%d)", int(s))
	}
}

// MessageKind is the kind of a raw key message
type MessageKind int

const (
	KeyDown MessageKind = iota
	KeyUp
	SysKeyDown
	SysKeyUp
)

// IsDown reports whether the message is a key-down or system-key-down
func (k MessageKind) IsDown() bool {
	return k == KeyDown || k == SysKeyDown
}

// KeyMessage is a raw keyboard notification with live modifier state
type KeyMessage struct {
	Kind  MessageKind
	VK    uint32
	Flags KeystrokeFlags
	Alt   bool
	Ctrl  bool
	Shift bool
}

// KeybindStore holds the committed "open chat" keybind
type KeybindStore interface {
	OpenChat() Keybind
	SetOpenChat(kb Keybind) error
}

// Capture records a keybind from raw key messages while listening
type Capture struct {
	mu        sync.Mutex
	store     KeybindStore
	state     CaptureState
	candidate Keybind
	scope     func() bool
	listeners []func(CaptureState, Keybind)
}

// NewCapture creates an idle capture machine committing into store
func NewCapture(store KeybindStore) *Capture {
	return &Capture{store: store}
}

// OnChange registers fn to be called after every state or candidate change.
// fn runs without the capture lock held.
func (c *Capture) OnChange(fn func(CaptureState, Keybind)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// LimitTo restricts capture to messages arriving while inScope reports true.
// Out-of-scope messages pass through even while listening.
func (c *Capture) LimitTo(inScope func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = inScope
}

// State returns the current state
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Candidate returns the in-progress keybind; ok is false unless listening
func (c *Capture) Candidate() (Keybind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate, c.state == Listening
}

// Begin starts listening with an empty candidate
func (c *Capture) Begin() {
	c.transition(Listening)
	slog.Debug("Keybind capture started")
}

// Handle processes one key message and reports whether it must be swallowed.
// A bare Escape press cancels the capture.
func (c *Capture) Handle(msg KeyMessage) bool {
	c.mu.Lock()
	if c.state != Listening || (c.scope != nil && !c.scope()) {
		c.mu.Unlock()
		return false
	}

	if !msg.Kind.IsDown() {
		c.mu.Unlock()
		return true
	}

	if msg.VK == VKEscape && !msg.Alt && !msg.Ctrl && !msg.Shift {
		c.mu.Unlock()
		c.Cancel()
		return true
	}

	kb := Keybind{
		Key:   msg.Flags.ExtendedScanCode(),
		Alt:   msg.Alt,
		Ctrl:  msg.Ctrl,
		Shift: msg.Shift,
	}
	if IsModifierVK(msg.VK) {
		kb = kb.withModifier(msg.VK)
		kb.Key = 0
	}

	c.candidate = kb
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Listening, kb)
	return true
}

// Accept commits the candidate as the open-chat keybind and stops listening
func (c *Capture) Accept() error {
	c.mu.Lock()
	if c.state != Listening {
		c.mu.Unlock()
		return ErrNotListening
	}
	kb := c.candidate
	c.state = Idle
	c.candidate = Keybind{}
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Idle, Keybind{})

	if err := c.store.SetOpenChat(kb); err != nil {
		return fmt.Errorf("failed to store keybind: %w", err)
	}

	slog.Info("Open chat keybind set", "key", kb.Key, "alt", kb.Alt, "ctrl", kb.Ctrl, "shift", kb.Shift)
	return nil
}

// Cancel discards the candidate and stops listening
func (c *Capture) Cancel() {
	c.transition(Idle)
	slog.Debug("Keybind capture cancelled")
}

// Unbind resets the open-chat keybind to the sentinel and stops listening
func (c *Capture) Unbind() error {
	c.transition(Idle)

	if err := c.store.SetOpenChat(Keybind{}); err != nil {
		return fmt.Errorf("failed to clear keybind: %w", err)
	}

	slog.Info("Open chat keybind cleared")
	return nil
}

func (c *Capture) transition(to CaptureState) {
	c.mu.Lock()
	c.state = to
	c.candidate = Keybind{}
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, to, Keybind{})
}

func notify(listeners []func(CaptureState, Keybind), state CaptureState, kb Keybind) {
	for _, fn := range listeners {
		fn(state, kb)
	}
}
