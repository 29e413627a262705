package replay

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"markestedt/slashgg/keybind"
	"markestedt/slashgg/platform"
)

// recorder keeps the ordered output of every fake device
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.list() {
		if e == event {
			n++
		}
	}
	return n
}

type fakeClipboard struct {
	rec     *recorder
	mu      sync.Mutex
	content []byte
	swapErr error
	setErr  error
	// swapEmptied makes a failing Swap report the previous contents as captured after clearing them
	swapEmptied bool
}

func (c *fakeClipboard) Get() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, nil
}

func (c *fakeClipboard) Set(data []byte) error {
	c.rec.add("set %s", data)
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = append([]byte(nil), data...)
	return nil
}

func (c *fakeClipboard) Swap(data []byte) ([]byte, bool, error) {
	c.rec.add("swap %s", data)
	if c.swapErr != nil {
		if !c.swapEmptied {
			return nil, false, c.swapErr
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		prev := c.content
		c.content = nil
		return prev, true, c.swapErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.content
	c.content = append([]byte(nil), data...)
	return prev, len(prev) > 0, nil
}

func (c *fakeClipboard) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.content)
}

type fakeWindow struct {
	rec      *recorder
	err      error
	focusErr error
	mu       sync.Mutex
	flags    []keybind.KeystrokeFlags
}

func (w *fakeWindow) Focus() error {
	w.rec.add("focus")
	return w.focusErr
}

func (w *fakeWindow) PostKey(vk uint32, flags keybind.KeystrokeFlags, down, sys bool) error {
	kind := "down"
	if !down {
		kind = "up"
	}
	if sys {
		kind = "sys" + kind
	}
	w.rec.add("post %s %#x", kind, vk)

	w.mu.Lock()
	w.flags = append(w.flags, flags)
	w.mu.Unlock()
	return w.err
}

func (w *fakeWindow) PostChar(r rune) error {
	w.rec.add("char %c", r)
	return w.err
}

var vkNames = map[uint16]string{
	keybind.VKLControl: "LCTRL",
	keybind.VKA:        "A",
	keybind.VKV:        "V",
}

// fakeInjector also notes what the clipboard held when V went down
type fakeInjector struct {
	rec    *recorder
	clip   *fakeClipboard
	pasted string
}

func (in *fakeInjector) Send(strokes ...platform.Keystroke) error {
	parts := make([]string, len(strokes))
	for i, s := range strokes {
		dir := "down"
		if s.Up {
			dir = "up"
		}
		parts[i] = vkNames[s.VK] + " " + dir
		if s.VK == keybind.VKV && !s.Up {
			in.pasted = in.clip.text()
		}
	}
	in.rec.add("inject %s", strings.Join(parts, ","))
	return nil
}

// fakeHost answers the n-th focus query (starting at 0) with focus(n)
type fakeHost struct {
	mu       sync.Mutex
	calls    int
	focus    func(n int) bool
	instance bool
}

func (h *fakeHost) TextboxFocused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.calls
	h.calls++
	if h.focus == nil {
		return false
	}
	return h.focus(n)
}

func (h *fakeHost) InInstance() bool { return h.instance }

type fakeNames struct{}

func (fakeNames) KeyName(keybind.KeystrokeFlags) string { return "" }

func (fakeNames) ScancodeToVK(scancode uint16) uint32 {
	switch scancode {
	case 0x1E:
		return 'A'
	case 0x3B:
		return 0x70
	case 0x48 | keybind.ExtendedMarker:
		return 0x26
	}
	return 0
}

func (fakeNames) VKToScancode(vk uint32) uint16 {
	switch vk {
	case keybind.VKReturn:
		return 0x1C
	case keybind.VKMenu:
		return 0x38
	case keybind.VKShift:
		return 0x2A
	case keybind.VKControl:
		return 0x1D
	}
	return 0
}

type fakeSettings struct {
	kb      keybind.Keybind
	restore bool
}

func (s fakeSettings) OpenChat() keybind.Keybind { return s.kb }
func (s fakeSettings) RestoreClipboard() bool { return s.restore }

type harness struct {
	rec      *recorder
	clip     *fakeClipboard
	window   *fakeWindow
	injector *fakeInjector
	host     *fakeHost
	engine   *Engine
}

func newHarness(settings fakeSettings, opts Options) *harness {
	rec := &recorder{}
	clip := &fakeClipboard{rec: rec}
	h := &harness{
		rec:      rec,
		clip:     clip,
		window:   &fakeWindow{rec: rec},
		injector: &fakeInjector{rec: rec, clip: clip},
		host:     &fakeHost{instance: true},
	}
	if opts.Message == "" {
		opts.Message = "/gg"
	}
	h.engine = NewEngine(Devices{
		Clipboard: h.clip,
		Window:    h.window,
		Injector:  h.injector,
		Host:      h.host,
		Names:     fakeNames{},
	}, settings, opts)
	h.engine.sleep = func(d time.Duration) { rec.add("sleep %v", d) }
	return h
}

var errBoom = errors.New("boom")
