package x11

import (
	"fmt"
	"unicode"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// Keymap is a snapshot of the server's keycode to keysym table.
type Keymap struct {
	min   xproto.Keycode
	width int
	syms  []xproto.Keysym
}

// NewKeymap builds a keymap from a GetKeyboardMapping reply layout: width
// keysyms per keycode, starting at min.
func NewKeymap(min xproto.Keycode, width int, syms []xproto.Keysym) *Keymap {
	return &Keymap{min: min, width: width, syms: syms}
}

// LoadKeymap fetches the full keyboard mapping of the connection.
func LoadKeymap(conn *xgb.Conn) (*Keymap, error) {
	setup := xproto.Setup(conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(conn, setup.MinKeycode, count).Reply()
	if err != nil {
		return nil, fmt.Errorf("get keyboard mapping: %w", err)
	}
	if reply.KeysymsPerKeycode == 0 {
		return nil, fmt.Errorf("get keyboard mapping: zero keysyms per keycode")
	}
	return NewKeymap(setup.MinKeycode, int(reply.KeysymsPerKeycode), reply.Keysyms), nil
}

func (k *Keymap) column(code xproto.Keycode, col int) xproto.Keysym {
	if code < k.min || col >= k.width {
		return 0
	}
	i := int(code-k.min)*k.width + col
	if i >= len(k.syms) {
		return 0
	}
	return k.syms[i]
}

// Keysym returns the keysym for code under state, using the first keysym
// group. Shift selects the second column; Lock upper-cases letters.
func (k *Keymap) Keysym(code xproto.Keycode, state uint16) xproto.Keysym {
	lower := k.column(code, 0)
	upper := k.column(code, 1)
	if upper == 0 {
		upper = lower
	}
	shift := state&xproto.ModMaskShift != 0
	if state&xproto.ModMaskLock != 0 {
		if r := KeysymRune(lower); unicode.IsLetter(r) && unicode.IsLower(r) {
			shift = !shift
		}
	}
	if shift {
		return upper
	}
	return lower
}

// Keycode returns the first keycode whose unshifted keysym is sym.
func (k *Keymap) Keycode(sym xproto.Keysym) (xproto.Keycode, bool) {
	if k.width == 0 {
		return 0, false
	}
	for i := 0; i < len(k.syms); i += k.width {
		if k.syms[i] == sym {
			return k.min + xproto.Keycode(i/k.width), true
		}
	}
	return 0, false
}

// KeysymRune returns the character a keysym types, or 0 for function keys.
func KeysymRune(sym xproto.Keysym) rune {
	switch {
	case sym >= 0x20 && sym <= 0x7e, sym >= 0xa0 && sym <= 0xff:
		return rune(sym)
	case sym >= 0x01000100 && sym <= 0x0110ffff:
		return rune(sym - 0x01000000)
	}
	return 0
}
