package keybind

import (
	"errors"
	"sync"
	"testing"
)

type memoryStore struct {
	kb    Keybind
	saves int
	err   error
}

func (m *memoryStore) OpenChat() Keybind { return m.kb }

func (m *memoryStore) SetOpenChat(kb Keybind) error {
	if m.err != nil {
		return m.err
	}
	m.kb = kb
	m.saves++
	return nil
}

func keyDown(vk uint32, scancode uint16) KeyMessage {
	return KeyMessage{Kind: KeyDown, VK: vk, Flags: NewKeystrokeFlags(scancode)}
}

func TestCaptureIdlePassesThrough(t *testing.T) {
	c := NewCapture(&memoryStore{})

	if c.State() != Idle {
		t.Fatalf("initial state = %v, want idle", c.State())
	}
	if c.Handle(keyDown('A', 0x1E)) {
		t.Error("idle capture should not consume key messages")
	}
	if _, ok := c.Candidate(); ok {
		t.Error("idle capture should not report a candidate")
	}
}

func TestCaptureLatestKeyDownWins(t *testing.T) {
	c := NewCapture(&memoryStore{})
	c.Begin()

	msgs := []KeyMessage{
		keyDown('A', 0x1E),
		{Kind: KeyUp, VK: 'A', Flags: NewKeystrokeFlags(0x1E)},
		{Kind: SysKeyDown, VK: 0x70, Flags: NewKeystrokeFlags(0x3B), Alt: true},
		{Kind: SysKeyUp, VK: 0x70, Flags: NewKeystrokeFlags(0x3B), Alt: true},
	}
	for _, m := range msgs {
		if !c.Handle(m) {
			t.Errorf("listening capture should consume %+v", m)
		}
	}

	got, ok := c.Candidate()
	if !ok {
		t.Fatal("expected a candidate while listening")
	}
	want := Keybind{Key: 0x3B, Alt: true}
	if !got.Equal(want) {
		t.Errorf("candidate = %+v, want %+v", got, want)
	}
}

func TestCaptureExtendedScancode(t *testing.T) {
	c := NewCapture(&memoryStore{})
	c.Begin()

	c.Handle(KeyMessage{Kind: KeyDown, VK: 0x26, Flags: NewKeystrokeFlags(0x48).WithExtended(true), Ctrl: true})

	got, _ := c.Candidate()
	if want := (Keybind{Key: 0xE048, Ctrl: true}); !got.Equal(want) {
		t.Errorf("candidate = %+v, want %+v", got, want)
	}
}

func TestCaptureModifierPress(t *testing.T) {
	tests := []struct {
		name string
		msg  KeyMessage
		want Keybind
	}{
		{"shift", keyDown(VKLShift, 0x2A), Keybind{Shift: true}},
		{"ctrl", keyDown(VKControl, 0x1D), Keybind{Ctrl: true}},
		{"alt", KeyMessage{Kind: SysKeyDown, VK: VKLMenu, Flags: NewKeystrokeFlags(0x38)}, Keybind{Alt: true}},
		{"shift while ctrl held", KeyMessage{Kind: KeyDown, VK: VKRShift, Flags: NewKeystrokeFlags(0x36), Ctrl: true}, Keybind{Ctrl: true, Shift: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCapture(&memoryStore{})
			c.Begin()
			c.Handle(tt.msg)

			got, _ := c.Candidate()
			if !got.Equal(tt.want) {
				t.Errorf("candidate = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCaptureAccept(t *testing.T) {
	store := &memoryStore{kb: Keybind{Key: ScancodeEnter}}
	c := NewCapture(store)

	var states []CaptureState
	c.OnChange(func(s CaptureState, _ Keybind) { states = append(states, s) })

	c.Begin()
	c.Handle(KeyMessage{Kind: KeyDown, VK: 'T', Flags: NewKeystrokeFlags(0x14), Shift: true})

	if err := c.Accept(); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if want := (Keybind{Key: 0x14, Shift: true}); !store.kb.Equal(want) {
		t.Errorf("stored keybind = %+v, want %+v", store.kb, want)
	}
	if c.State() != Idle {
		t.Errorf("state after accept = %v, want idle", c.State())
	}
	if _, ok := c.Candidate(); ok {
		t.Error("candidate should be cleared after accept")
	}
	if len(states) != 3 || states[0] != Listening || states[2] != Idle {
		t.Errorf("observed states = %v, want [listening listening idle]", states)
	}
}

func TestCaptureAcceptWhenIdle(t *testing.T) {
	store := &memoryStore{kb: Keybind{Key: ScancodeEnter}}
	c := NewCapture(store)

	if err := c.Accept(); !errors.Is(err, ErrNotListening) {
		t.Errorf("Accept() on idle capture error = %v, want ErrNotListening", err)
	}
	if store.saves != 0 {
		t.Error("idle accept must not touch the store")
	}
}

func TestCaptureAcceptStoreError(t *testing.T) {
	boom := errors.New("disk full")
	c := NewCapture(&memoryStore{err: boom})
	c.Begin()
	c.Handle(keyDown('A', 0x1E))

	if err := c.Accept(); !errors.Is(err, boom) {
		t.Errorf("Accept() error = %v, want %v", err, boom)
	}
	if c.State() != Idle {
		t.Error("capture should return to idle even when the store fails")
	}
}

func TestCaptureCancelKeepsCommitted(t *testing.T) {
	committed := Keybind{Key: 0x1E, Ctrl: true}
	store := &memoryStore{kb: committed}
	c := NewCapture(store)

	c.Begin()
	c.Cancel()

	if !store.kb.Equal(committed) || store.saves != 0 {
		t.Errorf("cancel changed committed keybind to %+v", store.kb)
	}

	c.Begin()
	c.Handle(keyDown('B', 0x30))
	c.Cancel()

	if !store.kb.Equal(committed) {
		t.Errorf("cancel after key press changed committed keybind to %+v", store.kb)
	}
	if c.Handle(keyDown('C', 0x2E)) {
		t.Error("capture should pass messages through after cancel")
	}
}

func TestCaptureUnbind(t *testing.T) {
	store := &memoryStore{kb: Keybind{Key: 0x1E, Alt: true}}
	c := NewCapture(store)

	c.Begin()
	c.Handle(keyDown('B', 0x30))

	if err := c.Unbind(); err != nil {
		t.Fatalf("Unbind() error = %v", err)
	}
	if !store.kb.IsUnbound() {
		t.Errorf("stored keybind = %+v, want unbound", store.kb)
	}
	if c.State() != Idle {
		t.Error("unbind should return to idle")
	}
}

func TestCaptureEscapeCancels(t *testing.T) {
	committed := Keybind{Key: 0x1E}
	store := &memoryStore{kb: committed}
	c := NewCapture(store)

	c.Begin()
	c.Handle(keyDown('B', 0x30))

	if !c.Handle(keyDown(VKEscape, 0x01)) {
		t.Error("Escape should be consumed while listening")
	}
	if c.State() != Idle {
		t.Errorf("state after Escape = %v, want idle", c.State())
	}
	if !store.kb.Equal(committed) || store.saves != 0 {
		t.Errorf("Escape changed committed keybind to %+v", store.kb)
	}
	if c.Handle(keyDown('C', 0x2E)) {
		t.Error("keys should pass through once Escape cancelled the capture")
	}
}

func TestCaptureEscapeWithModifierIsACandidate(t *testing.T) {
	c := NewCapture(&memoryStore{})
	c.Begin()

	c.Handle(KeyMessage{Kind: KeyDown, VK: VKEscape, Flags: NewKeystrokeFlags(0x01), Shift: true})

	got, ok := c.Candidate()
	if !ok || !got.Equal(Keybind{Key: 0x01, Shift: true}) {
		t.Errorf("candidate = %+v (listening %v), want Shift+Escape", got, ok)
	}
}

func TestCaptureOutOfScopePassesThrough(t *testing.T) {
	c := NewCapture(&memoryStore{})
	foreground := false
	c.LimitTo(func() bool { return foreground })
	c.Begin()

	if c.Handle(keyDown('A', 0x1E)) {
		t.Error("keys outside the host window must not be swallowed")
	}
	if got, _ := c.Candidate(); !got.Equal(Keybind{}) {
		t.Errorf("out-of-scope key changed the candidate to %+v", got)
	}

	foreground = true
	if !c.Handle(keyDown('A', 0x1E)) {
		t.Error("keys in the host window should be consumed while listening")
	}
	if got, _ := c.Candidate(); !got.Equal(Keybind{Key: 0x1E}) {
		t.Errorf("candidate = %+v, want A", got)
	}
}

func TestCaptureConcurrentAcceptCommitsOnce(t *testing.T) {
	store := &memoryStore{}
	c := NewCapture(store)
	c.Begin()
	c.Handle(keyDown('A', 0x1E))

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Accept()
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrNotListening):
			t.Errorf("Accept() error = %v", err)
		}
	}
	if ok != 1 || store.saves != 1 {
		t.Errorf("successful accepts = %d, saves = %d; want 1 and 1", ok, store.saves)
	}
}

func TestCaptureStateString(t *testing.T) {
	if Idle.String() != "idle" || Listening.String() != "listening" {
		t.Errorf("unexpected state names %q %q", Idle, Listening)
	}
}
