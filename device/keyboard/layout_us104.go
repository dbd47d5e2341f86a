package keyboard

// us104Chars holds the characters produced by keys whose output depends
// only on the shift state: {unshifted, shifted}.
var us104Chars = [numKeyCodes][2]rune{
	BackTick:           {'`', '~'},
	Key1:               {'1', '!'},
	Key2:               {'2', '@'},
	Key3:               {'3', '#'},
	Key4:               {'4', '$'},
	Key5:               {'5', '%'},
	Key6:               {'6', '^'},
	Key7:               {'7', '&'},
	Key8:               {'8', '*'},
	Key9:               {'9', '('},
	Key0:               {'0', ')'},
	Minus:              {'-', '_'},
	Equals:             {'=', '+'},
	BracketSquareLeft:  {'[', '{'},
	BracketSquareRight: {']', '}'},
	BackSlash:          {'\\', '|'},
	SemiColon:          {';', ':'},
	Quote:              {'\'', '"'},
	Comma:              {',', '<'},
	Fullstop:           {'.', '>'},
	Slash:              {'/', '?'},
	Escape:             {0x1b, 0x1b},
	Backspace:          {0x08, 0x08},
	Tab:                {0x09, 0x09},
	Enter:              {'\n', '\n'},
	Spacebar:           {' ', ' '},
	Delete:             {0x7f, 0x7f},
	NumpadSlash:        {'/', '/'},
	NumpadStar:         {'*', '*'},
	NumpadMinus:        {'-', '-'},
	NumpadPlus:         {'+', '+'},
	NumpadEnter:        {'\n', '\n'},
}

// us104Letters maps letter keys to their lower case character.
var us104Letters = [numKeyCodes]rune{
	A: 'a', B: 'b', C: 'c', D: 'd', E: 'e', F: 'f', G: 'g', H: 'h', I: 'i',
	J: 'j', K: 'k', L: 'l', M: 'm', N: 'n', O: 'o', P: 'p', Q: 'q', R: 'r',
	S: 's', T: 't', U: 'u', V: 'v', W: 'w', X: 'x', Y: 'y', Z: 'z',
}

// us104Numpad maps keypad keys to the character they produce while num lock
// is on and the navigation key they act as while it is off.
var us104Numpad = [numKeyCodes]struct {
	char rune
	nav  KeyCode
}{
	Numpad0:      {'0', Insert},
	Numpad1:      {'1', End},
	Numpad2:      {'2', ArrowDown},
	Numpad3:      {'3', PageDown},
	Numpad4:      {'4', ArrowLeft},
	Numpad5:      {'5', Numpad5},
	Numpad6:      {'6', ArrowRight},
	Numpad7:      {'7', Home},
	Numpad8:      {'8', ArrowUp},
	Numpad9:      {'9', PageUp},
	NumpadPeriod: {'.', Delete},
}

// mapKeyUS104 returns the key produced by pressing code on a US 104-key
// keyboard with the supplied modifiers.
func mapKeyUS104(code KeyCode, mods Modifiers) DecodedKey {
	if code == 0 || code >= numKeyCodes {
		return DecodedKey{Code: code}
	}

	if lower := us104Letters[code]; lower != 0 {
		if mods.IsCaps() {
			return DecodedKey{Rune: lower - 'a' + 'A', Code: code}
		}
		return DecodedKey{Rune: lower, Code: code}
	}

	if numpad := us104Numpad[code]; numpad.char != 0 {
		if mods.NumLock {
			return DecodedKey{Rune: numpad.char, Code: code}
		}
		return mapKeyUS104NumpadNav(numpad.nav)
	}

	if chars := us104Chars[code]; chars[0] != 0 {
		if mods.IsShifted() {
			return DecodedKey{Rune: chars[1], Code: code}
		}
		return DecodedKey{Rune: chars[0], Code: code}
	}

	return DecodedKey{Code: code}
}

// mapKeyUS104NumpadNav returns the key produced by a keypad key while num
// lock is off. The keypad period acts as Delete and yields its character.
func mapKeyUS104NumpadNav(nav KeyCode) DecodedKey {
	if nav == Delete {
		return DecodedKey{Rune: us104Chars[Delete][0], Code: Delete}
	}
	return DecodedKey{Code: nav}
}
