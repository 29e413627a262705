// Package replay opens chat in the host window and submits a fixed message
// by swapping the clipboard and synthesizing keyboard input.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"markestedt/slashgg/keybind"
	"markestedt/slashgg/platform"
)

// MinDelay is the shortest pause between synthesized steps the host reliably picks up
const MinDelay = 15 * time.Millisecond

const (
	pollInterval      = time.Millisecond
	focusAcquirePolls = 50
	focusReleasePolls = 250

	// restoreSettle lets the host consume the paste before the clipboard changes back
	restoreSettle = 50 * time.Millisecond
)

// ErrBusy is returned when a replay is already in flight
var ErrBusy = errors.New("replay already in progress")

// Sequence selects how the message is entered once chat is open
type Sequence string

const (
	// SequencePaste selects all and pastes the clipboard
	SequencePaste Sequence = "paste"
	// SequenceType waits for the chat box and posts the message one character at a time
	SequenceType Sequence = "type"
)

// Outcome describes how a session ended
type Outcome string

const (
	Completed Outcome = "completed"
	Partial   Outcome = "partial"
	Aborted   Outcome = "aborted"
	Skipped   Outcome = "skipped"
)

// Settings provides the live user settings read at the start of every session
type Settings interface {
	OpenChat() keybind.Keybind
	RestoreClipboard() bool
}

// Devices bundles the platform primitives a replay drives
type Devices struct {
	Clipboard platform.Clipboard
	Window    platform.Window
	Injector  platform.Injector
	Host      platform.HostContext
	Names     keybind.KeyNamer
}

// Options configures an Engine
type Options struct {
	Message      string
	Delay        time.Duration
	Sequence     Sequence
	InstanceOnly bool
}

// Session is the record of one replay
type Session struct {
	ID                string
	Started           time.Time
	Duration          time.Duration
	Sequence          Sequence
	OpenChat          keybind.Keybind
	ClipboardCaptured bool
	ClipboardRestored bool
	FocusTimedOut     bool
	Outcome           Outcome
	Err               error

	errs []error
}

func (s *Session) fail(err error) {
	slog.Warn("Replay step failed", "session", s.ID, "error", err)
	s.errs = append(s.errs, err)
}

// Engine runs replay sessions, at most one at a time
type Engine struct {
	dev      Devices
	settings Settings
	opts     Options

	running atomic.Bool
	dropped atomic.Int64

	mu        sync.Mutex
	observers []func(Session)

	sleep func(time.Duration)
	now   func() time.Time
}

// NewEngine creates an engine. Delays below MinDelay are raised to it.
func NewEngine(dev Devices, settings Settings, opts Options) *Engine {
	if opts.Delay < MinDelay {
		opts.Delay = MinDelay
	}
	if opts.Sequence == "" {
		opts.Sequence = SequencePaste
	}

	return &Engine{
		dev:      dev,
		settings: settings,
		opts:     opts,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// OnSession registers fn to receive every finished session.
// fn runs on the replay goroutine after the guard is released.
func (e *Engine) OnSession(fn func(Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Running reports whether a session is in flight
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Dropped returns how many runs were rejected by the guard
func (e *Engine) Dropped() int64 {
	return e.dropped.Load()
}

// Run performs one session. It returns ErrBusy without side effects when
// another session holds the guard. Once started a session is not cancelled.
func (e *Engine) Run(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	if !e.running.CompareAndSwap(false, true) {
		e.dropped.Add(1)
		slog.Debug("Replay dropped, another one is in progress")
		return Session{}, ErrBusy
	}

	s := func() Session {
		defer e.running.Store(false)
		return e.run()
	}()

	slog.Info("Replay finished",
		"session", s.ID,
		"outcome", s.Outcome,
		"duration", s.Duration,
		"clipboard_restored", s.ClipboardRestored,
	)

	e.mu.Lock()
	observers := e.observers
	e.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}

	return s, s.Err
}

func (e *Engine) run() Session {
	s := Session{
		ID:       uuid.NewString(),
		Started:  e.now(),
		Sequence: e.opts.Sequence,
		OpenChat: e.settings.OpenChat(),
	}
	defer func() {
		s.Duration = e.now().Sub(s.Started)
	}()

	if e.opts.InstanceOnly && !e.dev.Host.InInstance() {
		s.Outcome = Skipped
		return s
	}

	previous, captured, err := e.dev.Clipboard.Swap([]byte(e.opts.Message))
	if err != nil {
		s.Outcome = Aborted
		s.Err = fmt.Errorf("failed to swap clipboard: %w", err)
		// The old contents may already be gone once captured
		if captured {
			s.ClipboardCaptured = true
			if rerr := e.dev.Clipboard.Set(previous); rerr != nil {
				s.Err = errors.Join(s.Err, fmt.Errorf("failed to restore clipboard: %w", rerr))
			} else {
				s.ClipboardRestored = true
			}
		}
		return s
	}
	s.ClipboardCaptured = captured

	if !e.dev.Host.TextboxFocused() {
		e.openChat(&s, s.OpenChat)
	}

	switch e.opts.Sequence {
	case SequenceType:
		if !e.typeAndSubmit(&s) {
			s.FocusTimedOut = true
		}
	default:
		e.pasteAndSubmit(&s)
	}

	if captured && e.settings.RestoreClipboard() {
		e.sleep(restoreSettle)
		if !e.waitFocus(false, focusReleasePolls) {
			s.FocusTimedOut = true
		}
		if err := e.dev.Clipboard.Set(previous); err != nil {
			s.fail(fmt.Errorf("failed to restore clipboard: %w", err))
		} else {
			s.ClipboardRestored = true
		}
	}

	s.Outcome = Completed
	if len(s.errs) > 0 {
		s.Outcome = Partial
		s.Err = errors.Join(s.errs...)
	}
	return s
}

// openChat presses Enter when no chord is bound, otherwise plays the chord
func (e *Engine) openChat(s *Session, kb keybind.Keybind) {
	if kb.IsUnbound() {
		e.postVK(s, keybind.VKReturn, true, false)
		e.postVK(s, keybind.VKReturn, false, false)
		e.sleep(e.opts.Delay)
		return
	}

	if kb.Alt {
		e.postVK(s, keybind.VKMenu, true, true)
		e.sleep(e.opts.Delay)
	}
	if kb.Shift {
		e.postVK(s, keybind.VKShift, true, false)
		e.sleep(e.opts.Delay)
	}
	if kb.Ctrl {
		e.postVK(s, keybind.VKControl, true, false)
		e.sleep(e.opts.Delay)
	}

	if kb.Key != 0 {
		vk := e.dev.Names.ScancodeToVK(kb.Key)
		e.post(s, vk, kb.Key, true, kb.Alt)
		e.sleep(e.opts.Delay)
		e.post(s, vk, kb.Key, false, kb.Alt)
		e.sleep(e.opts.Delay)
	}

	if kb.Ctrl {
		e.postVK(s, keybind.VKControl, false, false)
		e.sleep(e.opts.Delay)
	}
	if kb.Shift {
		e.postVK(s, keybind.VKShift, false, false)
		e.sleep(e.opts.Delay)
	}
	if kb.Alt {
		e.postVK(s, keybind.VKMenu, false, true)
		e.sleep(e.opts.Delay)
	}
}

// pasteAndSubmit replaces the chat box contents with the clipboard and sends it
func (e *Engine) pasteAndSubmit(s *Session) {
	// Injected keystrokes go to whatever window is active
	if err := e.dev.Window.Focus(); err != nil {
		s.fail(fmt.Errorf("failed to focus host window, paste skipped: %w", err))
		return
	}

	e.inject(s, platform.Keystroke{VK: keybind.VKLControl})
	e.sleep(e.opts.Delay)

	e.inject(s,
		platform.Keystroke{VK: keybind.VKA},
		platform.Keystroke{VK: keybind.VKA, Up: true},
		platform.Keystroke{VK: keybind.VKV},
		platform.Keystroke{VK: keybind.VKV, Up: true},
	)
	e.sleep(e.opts.Delay)

	e.inject(s, platform.Keystroke{VK: keybind.VKLControl, Up: true})
	e.sleep(e.opts.Delay)

	e.postVK(s, keybind.VKReturn, true, false)
	e.postVK(s, keybind.VKReturn, false, false)
}

// typeAndSubmit is the older sequence: wait for the chat box, then post characters.
// It reports false when the chat box never took focus.
func (e *Engine) typeAndSubmit(s *Session) bool {
	if !e.waitFocus(true, focusAcquirePolls) {
		slog.Warn("Chat box did not take focus, message not typed", "session", s.ID)
		return false
	}

	for _, r := range e.opts.Message {
		if err := e.dev.Window.PostChar(r); err != nil {
			s.fail(fmt.Errorf("failed to post character %q: %w", r, err))
		}
	}
	e.sleep(e.opts.Delay)

	e.postVK(s, keybind.VKReturn, true, false)
	e.postVK(s, keybind.VKReturn, false, false)
	return true
}

// waitFocus polls until the textbox focus equals want, at most polls times
func (e *Engine) waitFocus(want bool, polls int) bool {
	for i := 0; i < polls; i++ {
		if e.dev.Host.TextboxFocused() == want {
			return true
		}
		e.sleep(pollInterval)
	}
	return e.dev.Host.TextboxFocused() == want
}

func (e *Engine) postVK(s *Session, vk uint32, down, sys bool) {
	e.post(s, vk, e.dev.Names.VKToScancode(vk), down, sys)
}

func (e *Engine) post(s *Session, vk uint32, scancode uint16, down, sys bool) {
	flags := keybind.KeystrokeFor(scancode, down, sys)
	if err := e.dev.Window.PostKey(vk, flags, down, sys); err != nil {
		s.fail(fmt.Errorf("failed to post key %#x: %w", vk, err))
	}
}

func (e *Engine) inject(s *Session, strokes ...platform.Keystroke) {
	if err := e.dev.Injector.Send(strokes...); err != nil {
		s.fail(fmt.Errorf("failed to inject input: %w", err))
	}
}
