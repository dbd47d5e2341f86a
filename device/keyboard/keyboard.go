// Package keyboard decodes the byte stream of a PS/2 keyboard that uses
// scancode set 1 into characters for a US 104-key layout.
package keyboard

import "minikern/kernel"

// DataPort is the I/O port from which the keyboard controller delivers
// scancode bytes.
const DataPort = 0x60

// KeyState describes whether a key was pressed or released.
type KeyState uint8

const (
	// KeyUp indicates that a key was released.
	KeyUp KeyState = iota

	// KeyDown indicates that a key was pressed or is auto-repeating.
	KeyDown
)

// KeyEvent describes a change in the state of a single key.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

// DecodedKey is the outcome of a key press. Keys that produce a character
// set Rune; for all other keys Rune is zero and Code identifies the key.
type DecodedKey struct {
	Rune rune
	Code KeyCode
}

// IsRune returns true if the key produced a character.
func (k DecodedKey) IsRune() bool {
	return k.Rune != 0
}

// Modifiers tracks the state of the modifier and lock keys.
type Modifiers struct {
	LeftShift    bool
	RightShift   bool
	LeftControl  bool
	RightControl bool
	LeftAlt      bool
	RightAlt     bool
	CapsLock     bool
	NumLock      bool
}

// IsShifted returns true if either shift key is held down.
func (m Modifiers) IsShifted() bool {
	return m.LeftShift || m.RightShift
}

// IsCaps returns true if letters should be upper case.
func (m Modifiers) IsCaps() bool {
	return m.IsShifted() != m.CapsLock
}

// Keyboard combines a scancode set 1 decoder with the modifier state needed
// to turn key events into characters. Control key combinations have no
// special meaning; they produce the same characters as plain key presses.
//
// Keyboard is not safe for concurrent use.
type Keyboard struct {
	decoder   scancodeSet1
	modifiers Modifiers
}

// New returns a Keyboard with num lock enabled.
func New() *Keyboard {
	return &Keyboard{
		modifiers: Modifiers{NumLock: true},
	}
}

// AddByte processes the next scancode byte. It returns a key event and true
// once a complete scancode sequence has been received. Prefix bytes return
// false and a nil error. Bytes that do not map to any key return an error.
func (kb *Keyboard) AddByte(b byte) (KeyEvent, bool, *kernel.Error) {
	return kb.decoder.addByte(b)
}

// ProcessKeyEvent updates the modifier state and returns the key that a
// press corresponds to. Releases and presses of modifier or lock keys
// return false.
func (kb *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == KeyDown

	switch ev.Code {
	case ShiftLeft:
		kb.modifiers.LeftShift = down
	case ShiftRight:
		kb.modifiers.RightShift = down
	case ControlLeft:
		kb.modifiers.LeftControl = down
	case ControlRight:
		kb.modifiers.RightControl = down
	case AltLeft:
		kb.modifiers.LeftAlt = down
	case AltRight:
		kb.modifiers.RightAlt = down
	case CapsLock:
		if down {
			kb.modifiers.CapsLock = !kb.modifiers.CapsLock
		}
	case NumpadLock:
		if down {
			kb.modifiers.NumLock = !kb.modifiers.NumLock
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return mapKeyUS104(ev.Code, kb.modifiers), true
	}

	return DecodedKey{}, false
}

// Modifiers returns the current modifier state.
func (kb *Keyboard) Modifiers() Modifiers {
	return kb.modifiers
}
