package keybind

// ExtendedMarker is OR'd into a scancode when the key is an extended key
const ExtendedMarker uint16 = 0xE000

// KeystrokeFlags is the packed keystroke payload carried by key messages.
//
//	bits  0-15  repeat count
//	bits 16-23  scan code
//	bit  24     extended key
//	bits 25-28  reserved
//	bit  29     context code (Alt held)
//	bit  30     previous key state
//	bit  31     transition state
type KeystrokeFlags uint32

const (
	scanShift       = 16
	extendedBit     = 1 << 24
	contextBit      = 1 << 29
	previousBit     = 1 << 30
	transitionBit   = 1 << 31
	repeatCountMask = 0xFFFF
)

// NewKeystrokeFlags packs a scancode. A scancode carrying ExtendedMarker sets the extended bit.
func NewKeystrokeFlags(scancode uint16) KeystrokeFlags {
	f := KeystrokeFlags(scancode&0xFF) << scanShift
	if scancode&ExtendedMarker == ExtendedMarker {
		f |= extendedBit
	}
	return f
}

// KeystrokeFor builds the payload for a synthesized key message.
// Repeat count is 1; key-ups set the previous and transition bits.
func KeystrokeFor(scancode uint16, down, sys bool) KeystrokeFlags {
	f := NewKeystrokeFlags(scancode) | 1
	if sys {
		f |= contextBit
	}
	if !down {
		f |= previousBit | transitionBit
	}
	return f
}

// RepeatCount returns the auto-repeat count
func (f KeystrokeFlags) RepeatCount() uint16 {
	return uint16(f & repeatCountMask)
}

// ScanCode returns the raw 8-bit scan code
func (f KeystrokeFlags) ScanCode() uint8 {
	return uint8(f >> scanShift)
}

// Extended reports whether the extended-key bit is set
func (f KeystrokeFlags) Extended() bool {
	return f&extendedBit != 0
}

// ContextCode reports whether Alt was held
func (f KeystrokeFlags) ContextCode() bool {
	return f&contextBit != 0
}

// PreviousKeyState reports whether the key was down before the message
func (f KeystrokeFlags) PreviousKeyState() bool {
	return f&previousBit != 0
}

// TransitionState reports whether the key is being released
func (f KeystrokeFlags) TransitionState() bool {
	return f&transitionBit != 0
}

// ExtendedScanCode returns the scan code with ExtendedMarker set for extended keys
func (f KeystrokeFlags) ExtendedScanCode() uint16 {
	sc := uint16(f.ScanCode())
	if f.Extended() {
		sc |= ExtendedMarker
	}
	return sc
}

// WithExtended returns f with the extended bit set or cleared
func (f KeystrokeFlags) WithExtended(extended bool) KeystrokeFlags {
	if extended {
		return f | extendedBit
	}
	return f &^ extendedBit
}
