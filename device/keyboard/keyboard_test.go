package keyboard

import (
	"minikern/kernel"
	"testing"
)

func TestAddByte(t *testing.T) {
	specs := []struct {
		input    []byte
		expEvent KeyEvent
		expOK    bool
		expErr   *kernel.Error
	}{
		{[]byte{0x1e}, KeyEvent{A, KeyDown}, true, nil},
		{[]byte{0x9e}, KeyEvent{A, KeyUp}, true, nil},
		{[]byte{0x01}, KeyEvent{Escape, KeyDown}, true, nil},
		{[]byte{0x39}, KeyEvent{Spacebar, KeyDown}, true, nil},
		{[]byte{0x58}, KeyEvent{F12, KeyDown}, true, nil},
		{[]byte{0x1d}, KeyEvent{ControlLeft, KeyDown}, true, nil},
		{[]byte{0xe0, 0x1d}, KeyEvent{ControlRight, KeyDown}, true, nil},
		{[]byte{0xe0, 0x9d}, KeyEvent{ControlRight, KeyUp}, true, nil},
		{[]byte{0xe0, 0x48}, KeyEvent{ArrowUp, KeyDown}, true, nil},
		{[]byte{0xe0, 0x1c}, KeyEvent{NumpadEnter, KeyDown}, true, nil},
		{[]byte{0x48}, KeyEvent{Numpad8, KeyDown}, true, nil},
		{[]byte{0xe0, 0x2a, 0xe0, 0x37}, KeyEvent{PrintScreen, KeyDown}, true, nil},
		{[]byte{0xe0, 0xb7, 0xe0, 0xaa}, KeyEvent{PrintScreen, KeyUp}, true, nil},
		{[]byte{0xe1, 0x1d, 0x45}, KeyEvent{PauseBreak, KeyDown}, true, nil},
		{[]byte{0xe1, 0x9d, 0xc5}, KeyEvent{PauseBreak, KeyUp}, true, nil},
		{[]byte{0x00}, KeyEvent{}, false, ErrUnknownKeyCode},
		{[]byte{0x59}, KeyEvent{}, false, ErrUnknownKeyCode},
		{[]byte{0xe0, 0x10}, KeyEvent{}, false, ErrUnknownKeyCode},
		{[]byte{0xe1, 0x1d, 0x46}, KeyEvent{}, false, errInvalidPauseSequence},
	}

	for specIndex, spec := range specs {
		kb := New()

		var (
			ev     KeyEvent
			ok     bool
			err    *kernel.Error
			seenOK bool
		)
		for _, b := range spec.input {
			ev, ok, err = kb.AddByte(b)
			if ok {
				seenOK = true
				if ev != spec.expEvent {
					t.Errorf("[spec %d] expected event %+v; got %+v", specIndex, spec.expEvent, ev)
				}
			}
		}

		if seenOK != spec.expOK {
			t.Errorf("[spec %d] expected an event to be emitted: %t; got %t", specIndex, spec.expOK, seenOK)
		}

		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestAddByteRecoversAfterError(t *testing.T) {
	kb := New()

	if _, _, err := kb.AddByte(0xe0); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := kb.AddByte(0x10); ok || err != ErrUnknownKeyCode {
		t.Fatalf("expected ErrUnknownKeyCode; got %t, %v", ok, err)
	}

	// the decoder is back at its initial state
	if ev, ok, err := kb.AddByte(0x10); !ok || err != nil || ev != (KeyEvent{Q, KeyDown}) {
		t.Fatalf("expected Q to be pressed; got %+v, %t, %v", ev, ok, err)
	}
}

// typeKeys feeds a sequence of scancodes to kb and returns the decoded
// characters.
func typeKeys(t *testing.T, kb *Keyboard, scancodes ...byte) []DecodedKey {
	var keys []DecodedKey
	for _, b := range scancodes {
		ev, ok, err := kb.AddByte(b)
		if err != nil {
			t.Fatalf("unexpected error for scancode 0x%x: %v", b, err)
		}

		if !ok {
			continue
		}

		if key, ok := kb.ProcessKeyEvent(ev); ok {
			keys = append(keys, key)
		}
	}

	return keys
}

func runes(keys []DecodedKey) string {
	var out []rune
	for _, key := range keys {
		if key.IsRune() {
			out = append(out, key.Rune)
		}
	}
	return string(out)
}

func TestProcessKeyEvent(t *testing.T) {
	specs := []struct {
		descr     string
		scancodes []byte
		exp       string
	}{
		{"lower case", []byte{0x23, 0xa3, 0x17, 0x97}, "hi"},
		{"left shift", []byte{0x2a, 0x23, 0xa3, 0xaa, 0x17, 0x97}, "Hi"},
		{"right shift", []byte{0x36, 0x02, 0x82, 0x0d, 0xb6, 0x0d}, "!+="},
		{"caps lock", []byte{0x3a, 0xba, 0x1e, 0x02}, "A1"},
		{"caps lock with shift", []byte{0x3a, 0xba, 0x2a, 0x1e, 0x02, 0xaa}, "a!"},
		{"caps lock toggles off", []byte{0x3a, 0xba, 0x3a, 0xba, 0x1e}, "a"},
		{"control is ignored", []byte{0x1d, 0x2e, 0x9d, 0xe0, 0x1d, 0x2e}, "cc"},
		{"alt is ignored", []byte{0x38, 0x1f, 0xb8}, "s"},
		{"punctuation", []byte{0x29, 0x27, 0x28, 0x2b, 0x33, 0x34, 0x35, 0x1a, 0x1b}, "`;'\\,./[]"},
		{"shifted punctuation", []byte{0x2a, 0x29, 0x27, 0x28, 0x2b, 0x33, 0x34, 0x35, 0x1a, 0x1b}, "~:\"|<>?{}"},
		{"whitespace", []byte{0x39, 0x0f, 0x1c, 0xe0, 0x1c}, " \t\n\n"},
		{"numpad with num lock", []byte{0x47, 0x4c, 0x52, 0x53, 0x37, 0x4a, 0x4e, 0xe0, 0x35}, "750.*-+/"},
		{"control characters", []byte{0x01, 0x0e, 0xe0, 0x53}, "\x1b\x08\x7f"},
		{"key releases", []byte{0x9e, 0xa3}, ""},
	}

	for _, spec := range specs {
		if got := runes(typeKeys(t, New(), spec.scancodes...)); got != spec.exp {
			t.Errorf("[%s] expected %q; got %q", spec.descr, spec.exp, got)
		}
	}
}

func TestProcessKeyEventRawKeys(t *testing.T) {
	specs := []struct {
		scancodes []byte
		expKeys   []DecodedKey
	}{
		{
			[]byte{0xe0, 0x48, 0x3b, 0xe0, 0x5b},
			[]DecodedKey{{Code: ArrowUp}, {Code: F1}, {Code: WindowsLeft}},
		},
		{
			// num lock off turns the keypad into navigation keys
			[]byte{0x45, 0xc5, 0x47, 0x48, 0x4c, 0x52, 0x53},
			[]DecodedKey{{Code: Home}, {Code: ArrowUp}, {Code: Numpad5}, {Code: Insert}, {Rune: 0x7f, Code: Delete}},
		},
		{
			// shifts and locks never produce keys
			[]byte{0x2a, 0x36, 0x3a, 0x45, 0x1d, 0x38, 0xe0, 0x38},
			nil,
		},
	}

	for specIndex, spec := range specs {
		got := typeKeys(t, New(), spec.scancodes...)
		if len(got) != len(spec.expKeys) {
			t.Errorf("[spec %d] expected %d keys; got %d: %+v", specIndex, len(spec.expKeys), len(got), got)
			continue
		}

		for i, exp := range spec.expKeys {
			if got[i] != exp {
				t.Errorf("[spec %d] [key %d] expected %+v; got %+v", specIndex, i, exp, got[i])
			}
		}
	}
}

func TestModifiers(t *testing.T) {
	kb := New()

	if mods := kb.Modifiers(); !mods.NumLock || mods.CapsLock || mods.IsShifted() {
		t.Fatalf("expected only num lock to be enabled initially; got %+v", mods)
	}

	typeKeys(t, kb, 0x2a, 0x36, 0x1d, 0xe0, 0x1d, 0x38, 0xe0, 0x38)
	exp := Modifiers{
		LeftShift: true, RightShift: true, LeftControl: true,
		RightControl: true, LeftAlt: true, RightAlt: true, NumLock: true,
	}
	if got := kb.Modifiers(); got != exp {
		t.Fatalf("expected modifiers %+v; got %+v", exp, got)
	}

	// releasing one shift keeps the other active
	typeKeys(t, kb, 0xaa)
	if !kb.Modifiers().IsShifted() {
		t.Fatal("expected right shift to keep the keyboard shifted")
	}

	typeKeys(t, kb, 0xb6, 0x9d, 0xe0, 0x9d, 0xb8, 0xe0, 0xb8)
	if got := kb.Modifiers(); got != (Modifiers{NumLock: true}) {
		t.Fatalf("expected all modifiers to be released; got %+v", got)
	}
}

func TestKeyCodeString(t *testing.T) {
	specs := []struct {
		code KeyCode
		exp  string
	}{
		{Escape, "Escape"},
		{ArrowUp, "ArrowUp"},
		{NumpadPeriod, "NumpadPeriod"},
		{KeyCode(0), "Unknown"},
		{numKeyCodes, "Unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.code.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}

	// every key has a name
	for code := Escape; code < numKeyCodes; code++ {
		if code.String() == "" {
			t.Errorf("expected key code %d to have a name", code)
		}
	}
}
