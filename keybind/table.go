package keybind

import "sort"

// ScancodeTable maps scancodes to layout key names.
// It is filled once by BuildScancodeTable and never mutated afterwards,
// so it can be shared between goroutines without locking.
type ScancodeTable struct {
	names map[uint16]string
}

// BuildScancodeTable queries every scancode 0..254 both plain and extended.
// Plain names are stored under the raw code, extended names under code|ExtendedMarker.
func BuildScancodeTable(names KeyNamer) *ScancodeTable {
	t := &ScancodeTable{names: make(map[uint16]string)}

	for sc := uint16(0); sc < 255; sc++ {
		if name := names.KeyName(NewKeystrokeFlags(sc)); name != "" {
			t.names[sc] = name
		}

		ext := sc | ExtendedMarker
		if name := names.KeyName(NewKeystrokeFlags(ext)); name != "" {
			t.names[ext] = name
		}
	}

	return t
}

// Lookup returns the name stored for scancode
func (t *ScancodeTable) Lookup(scancode uint16) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.names[scancode]
	return name, ok
}

// Len returns the number of resolved scancodes
func (t *ScancodeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Codes returns every resolved scancode in ascending order
func (t *ScancodeTable) Codes() []uint16 {
	if t == nil {
		return nil
	}
	codes := make([]uint16, 0, len(t.names))
	for sc := range t.names {
		codes = append(codes, sc)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
