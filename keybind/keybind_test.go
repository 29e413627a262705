package keybind

import (
	"testing"
)

// fakeNamer mimics a US layout that only names arrow keys when asked with the extended bit
type fakeNamer struct {
	names map[uint16]string
	vks   map[uint16]uint32
	calls int
}

func newFakeNamer() *fakeNamer {
	return &fakeNamer{
		names: map[uint16]string{
			0x1C:                  "Enter",
			0x1D:                  "Ctrl",
			0x1E:                  "a",
			0x02:                  "1",
			0x2A:                  "Shift",
			0x38:                  "Alt",
			0x3B:                  "F1",
			0x27:                  "o\u0308",
			0x48 | ExtendedMarker: "Up",
			0x1C | ExtendedMarker: "Num Enter",
		},
		vks: map[uint16]uint32{
			0x1C:                  VKReturn,
			0x1D:                  VKControl,
			0x1E:                  'A',
			0x02:                  '1',
			0x2A:                  VKShift,
			0x38:                  VKMenu,
			0x3B:                  0x70,
			0x27:                  0xC0,
			0x48 | ExtendedMarker: 0x26,
		},
	}
}

func (f *fakeNamer) KeyName(flags KeystrokeFlags) string {
	f.calls++
	return f.names[flags.ExtendedScanCode()]
}

func (f *fakeNamer) ScancodeToVK(scancode uint16) uint32 {
	return f.vks[scancode]
}

func (f *fakeNamer) VKToScancode(vk uint32) uint16 {
	switch vk {
	case VKMenu:
		return 0x38
	case VKControl:
		return 0x1D
	case VKShift:
		return 0x2A
	}
	for sc, v := range f.vks {
		if v == vk {
			return sc
		}
	}
	return 0
}

func TestKeybindEqual(t *testing.T) {
	base := Keybind{Key: 0x1E, Alt: true, Ctrl: false, Shift: true}

	tests := []struct {
		name  string
		other Keybind
		want  bool
	}{
		{"identical", Keybind{Key: 0x1E, Alt: true, Shift: true}, true},
		{"different key", Keybind{Key: 0x1F, Alt: true, Shift: true}, false},
		{"different alt", Keybind{Key: 0x1E, Shift: true}, false},
		{"different ctrl", Keybind{Key: 0x1E, Alt: true, Ctrl: true, Shift: true}, false},
		{"different shift", Keybind{Key: 0x1E, Alt: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(base, tt.other); got != tt.want {
				t.Errorf("Equal(%+v, %+v) = %v, want %v", base, tt.other, got, tt.want)
			}
			if got := tt.other.Equal(base); got != tt.want {
				t.Errorf("Equal is not symmetric for %+v", tt.other)
			}
		})
	}
}

func TestKeybindIsUnbound(t *testing.T) {
	if !(Keybind{}).IsUnbound() {
		t.Error("zero keybind should be unbound")
	}
	if (Keybind{Ctrl: true}).IsUnbound() {
		t.Error("ctrl-only keybind should not be unbound")
	}
}

func TestRender(t *testing.T) {
	names := newFakeNamer()
	r := NewRenderer(names, BuildScancodeTable(names))

	tests := []struct {
		name   string
		kb     Keybind
		padded bool
		want   string
	}{
		{"unbound", Keybind{}, false, "(null)"},
		{"unbound padded", Keybind{}, true, "(null)"},
		{"letter", Keybind{Key: 0x1E}, false, "A"},
		{"digit", Keybind{Key: 0x02}, false, "1"},
		{"enter from table", Keybind{Key: ScancodeEnter}, false, "ENTER"},
		{"function key", Keybind{Key: 0x3B}, true, "F1"},
		{"extended arrow", Keybind{Key: 0x48 | ExtendedMarker}, false, "UP"},
		{"ctrl letter", Keybind{Key: 0x1E, Ctrl: true}, false, "CTRL+A"},
		{"ctrl letter padded", Keybind{Key: 0x1E, Ctrl: true}, true, "CTRL + A"},
		{"all modifiers", Keybind{Key: 0x3B, Shift: true, Ctrl: true, Alt: true}, false, "ALT+CTRL+SHIFT+F1"},
		{"all modifiers padded", Keybind{Key: 0x3B, Shift: true, Ctrl: true, Alt: true}, true, "ALT + CTRL + SHIFT + F1"},
		{"modifier only", Keybind{Shift: true}, false, "SHIFT+"},
		{"unknown key", Keybind{Key: 0x70, Alt: true}, true, "ALT + "},
		{"normalized", Keybind{Key: 0x27}, false, "\u00d6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Render(tt.kb, tt.padded)
			if got != tt.want {
				t.Errorf("Render(%+v, %v) = %q, want %q", tt.kb, tt.padded, got, tt.want)
			}
			if again := r.Render(tt.kb, tt.padded); again != got {
				t.Errorf("Render is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestRenderModifierOrder(t *testing.T) {
	names := newFakeNamer()
	r := NewRenderer(names, BuildScancodeTable(names))

	var a, b Keybind
	a.Shift = true
	a.Alt = true
	a.Key = 0x1E
	b.Key = 0x1E
	b.Alt = true
	b.Shift = true

	if ra, rb := r.Render(a, false), r.Render(b, false); ra != rb || ra != "ALT+SHIFT+A" {
		t.Errorf("Render = %q and %q, want ALT+SHIFT+A", ra, rb)
	}
}

func TestIsModifierVK(t *testing.T) {
	for _, vk := range []uint32{VKShift, VKControl, VKMenu, VKLShift, VKRShift, VKLControl, VKRControl, VKLMenu, VKRMenu} {
		if !IsModifierVK(vk) {
			t.Errorf("IsModifierVK(%#x) = false, want true", vk)
		}
	}
	for _, vk := range []uint32{VKReturn, VKA, VKV, 0x5B} {
		if IsModifierVK(vk) {
			t.Errorf("IsModifierVK(%#x) = true, want false", vk)
		}
	}
}
