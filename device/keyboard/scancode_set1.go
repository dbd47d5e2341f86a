package keyboard

import "minikern/kernel"

const (
	set1Extended  = 0xe0
	set1Pause     = 0xe1
	set1BreakMask = 0x80

	// The fake shift codes that some keyboards emit around extended keys
	// such as PrintScreen.
	set1FakeShift        = 0x2a
	set1FakeShiftRelease = set1FakeShift | set1BreakMask
)

var (
	// ErrUnknownKeyCode is returned when a byte does not correspond to
	// any key in the active scancode set.
	ErrUnknownKeyCode = &kernel.Error{Module: "keyboard", Message: "unknown scancode"}

	errInvalidPauseSequence = &kernel.Error{Module: "keyboard", Message: "invalid pause key sequence"}

	// set1Keys maps scancode set 1 make codes to keys.
	set1Keys = [0x80]KeyCode{
		0x01: Escape, 0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4,
		0x06: Key5, 0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0a: Key9,
		0x0b: Key0, 0x0c: Minus, 0x0d: Equals, 0x0e: Backspace, 0x0f: Tab,
		0x10: Q, 0x11: W, 0x12: E, 0x13: R, 0x14: T, 0x15: Y, 0x16: U,
		0x17: I, 0x18: O, 0x19: P, 0x1a: BracketSquareLeft,
		0x1b: BracketSquareRight, 0x1c: Enter, 0x1d: ControlLeft,
		0x1e: A, 0x1f: S, 0x20: D, 0x21: F, 0x22: G, 0x23: H, 0x24: J,
		0x25: K, 0x26: L, 0x27: SemiColon, 0x28: Quote, 0x29: BackTick,
		0x2a: ShiftLeft, 0x2b: BackSlash, 0x2c: Z, 0x2d: X, 0x2e: C,
		0x2f: V, 0x30: B, 0x31: N, 0x32: M, 0x33: Comma, 0x34: Fullstop,
		0x35: Slash, 0x36: ShiftRight, 0x37: NumpadStar, 0x38: AltLeft,
		0x39: Spacebar, 0x3a: CapsLock, 0x3b: F1, 0x3c: F2, 0x3d: F3,
		0x3e: F4, 0x3f: F5, 0x40: F6, 0x41: F7, 0x42: F8, 0x43: F9,
		0x44: F10, 0x45: NumpadLock, 0x46: ScrollLock, 0x47: Numpad7,
		0x48: Numpad8, 0x49: Numpad9, 0x4a: NumpadMinus, 0x4b: Numpad4,
		0x4c: Numpad5, 0x4d: Numpad6, 0x4e: NumpadPlus, 0x4f: Numpad1,
		0x50: Numpad2, 0x51: Numpad3, 0x52: Numpad0, 0x53: NumpadPeriod,
		0x57: F11, 0x58: F12,
	}

	// set1ExtendedKeys maps the make codes that follow an 0xE0 prefix.
	set1ExtendedKeys = [0x80]KeyCode{
		0x1c: NumpadEnter, 0x1d: ControlRight, 0x35: NumpadSlash,
		0x37: PrintScreen, 0x38: AltRight, 0x47: Home, 0x48: ArrowUp,
		0x49: PageUp, 0x4b: ArrowLeft, 0x4d: ArrowRight, 0x4f: End,
		0x50: ArrowDown, 0x51: PageDown, 0x52: Insert, 0x53: Delete,
		0x5b: WindowsLeft, 0x5c: WindowsRight, 0x5d: Apps,
	}
)

type set1State uint8

const (
	set1Start set1State = iota
	set1AfterExtended
	set1AfterPause
	set1AfterPauseByte
)

// scancodeSet1 assembles scancode set 1 byte sequences into key events.
type scancodeSet1 struct {
	state set1State

	// pauseByte holds the first byte following an 0xE1 prefix.
	pauseByte byte
}

// addByte feeds the next byte received from the keyboard controller to the
// decoder. It returns a key event once a complete sequence has been
// received. Bytes that do not map to a key are reported as errors and reset
// the decoder.
func (d *scancodeSet1) addByte(b byte) (KeyEvent, bool, *kernel.Error) {
	switch d.state {
	case set1AfterExtended:
		d.state = set1Start

		// PrintScreen is wrapped in fake shift presses that carry no
		// information.
		if b == set1FakeShift || b == set1FakeShiftRelease {
			return KeyEvent{}, false, nil
		}

		return set1Event(&set1ExtendedKeys, b)
	case set1AfterPause:
		d.pauseByte, d.state = b, set1AfterPauseByte
		return KeyEvent{}, false, nil
	case set1AfterPauseByte:
		d.state = set1Start

		switch {
		case d.pauseByte == 0x1d && b == 0x45:
			return KeyEvent{Code: PauseBreak, State: KeyDown}, true, nil
		case d.pauseByte == 0x9d && b == 0xc5:
			return KeyEvent{Code: PauseBreak, State: KeyUp}, true, nil
		}
		return KeyEvent{}, false, errInvalidPauseSequence
	}

	switch b {
	case set1Extended:
		d.state = set1AfterExtended
		return KeyEvent{}, false, nil
	case set1Pause:
		d.state = set1AfterPause
		return KeyEvent{}, false, nil
	}

	return set1Event(&set1Keys, b)
}

// set1Event looks up the key for b in keys. The high bit of b distinguishes
// releases from presses.
func set1Event(keys *[0x80]KeyCode, b byte) (KeyEvent, bool, *kernel.Error) {
	state := KeyDown
	if b&set1BreakMask != 0 {
		state = KeyUp
	}

	code := keys[b&^set1BreakMask]
	if code == 0 {
		return KeyEvent{}, false, ErrUnknownKeyCode
	}

	return KeyEvent{Code: code, State: state}, true, nil
}
