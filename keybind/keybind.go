package keybind

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Unbound is the placeholder shown for a keybind with nothing set
const Unbound = "(null)"

// ScancodeEnter is the scancode of the main Enter key
const ScancodeEnter uint16 = 0x1C

// Virtual key codes used when rendering and synthesizing chords
const (
	VKReturn   = 0x0D
	VKEscape   = 0x1B
	VKShift    = 0x10
	VKControl  = 0x11
	VKMenu     = 0x12
	VKA        = 0x41
	VKV        = 0x56
	VKLShift   = 0xA0
	VKRShift   = 0xA1
	VKLControl = 0xA2
	VKRControl = 0xA3
	VKLMenu    = 0xA4
	VKRMenu    = 0xA5
)

// Keybind is a chord: one main key plus modifiers
type Keybind struct {
	Key   uint16 // Scancode, 0 when unset. Extended keys carry ExtendedMarker.
	Alt   bool
	Ctrl  bool
	Shift bool
}

// Equal reports whether both keybinds have identical fields
func (k Keybind) Equal(other Keybind) bool {
	return k.Key == other.Key &&
		k.Alt == other.Alt &&
		k.Ctrl == other.Ctrl &&
		k.Shift == other.Shift
}

// IsUnbound reports whether k is the zero-value sentinel
func (k Keybind) IsUnbound() bool {
	return k.Equal(Keybind{})
}

// Equal reports whether a and b have identical fields
func Equal(a, b Keybind) bool {
	return a.Equal(b)
}

// KeyNamer resolves keys against the active keyboard layout
type KeyNamer interface {
	// KeyName returns the layout name for a keystroke, or "" if there is none
	KeyName(flags KeystrokeFlags) string
	// ScancodeToVK maps a scancode (with ExtendedMarker if extended) to a virtual key
	ScancodeToVK(scancode uint16) uint32
	// VKToScancode maps a virtual key to its scancode
	VKToScancode(vk uint32) uint16
}

// Renderer turns keybinds into display strings
type Renderer struct {
	names KeyNamer
	table *ScancodeTable
}

// NewRenderer creates a renderer backed by names and a prebuilt scancode table
func NewRenderer(names KeyNamer, table *ScancodeTable) *Renderer {
	return &Renderer{
		names: names,
		table: table,
	}
}

// Render returns the display string for kb.
// Modifiers always appear as Alt, Ctrl, Shift regardless of how kb was built.
func (r *Renderer) Render(kb Keybind, padded bool) string {
	if kb.IsUnbound() {
		return Unbound
	}

	sep := "+"
	if padded {
		sep = " + "
	}

	var b strings.Builder

	if kb.Alt {
		b.WriteString(r.modifierName(VKMenu))
		b.WriteString(sep)
	}
	if kb.Ctrl {
		b.WriteString(r.modifierName(VKControl))
		b.WriteString(sep)
	}
	if kb.Shift {
		b.WriteString(r.modifierName(VKShift))
		b.WriteString(sep)
	}

	if kb.Key != 0 {
		b.WriteString(r.keyName(kb.Key))
	}

	return norm.NFC.String(strings.ToUpper(b.String()))
}

func (r *Renderer) modifierName(vk uint32) string {
	sc := r.names.VKToScancode(vk)
	return r.names.KeyName(NewKeystrokeFlags(sc))
}

func (r *Renderer) keyName(scancode uint16) string {
	vk := r.names.ScancodeToVK(scancode)
	if isAlphanumeric(vk) {
		return r.names.KeyName(NewKeystrokeFlags(scancode))
	}

	name, _ := r.table.Lookup(scancode)
	return name
}

func isAlphanumeric(vk uint32) bool {
	return (vk >= 'A' && vk <= 'Z') || (vk >= '0' && vk <= '9')
}

// IsModifierVK reports whether vk is Shift, Ctrl or Alt in either generic or sided form
func IsModifierVK(vk uint32) bool {
	return Keybind{}.withModifier(vk) != Keybind{}
}

// withModifier returns k with the flag for modifier vk set; other keys leave k unchanged
func (k Keybind) withModifier(vk uint32) Keybind {
	switch vk {
	case VKShift, VKLShift, VKRShift:
		k.Shift = true
	case VKControl, VKLControl, VKRControl:
		k.Ctrl = true
	case VKMenu, VKLMenu, VKRMenu:
		k.Alt = true
	}
	return k
}
