package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"

	"imbridge/internal/xim"
)

// Named keysyms usable in hotkey specs. Single characters map to
// themselves.
var keysymNames = map[string]xproto.Keysym{
	"space":     0x0020,
	"return":    0xff0d,
	"enter":     0xff0d,
	"tab":       0xff09,
	"escape":    0xff1b,
	"backspace": 0xff08,
	"delete":    0xffff,
	"henkan":    0xff23,
	"muhenkan":  0xff22,
	"hangul":    0xff31,
	"f1":        0xffbe,
	"f2":        0xffbf,
	"f3":        0xffc0,
	"f4":        0xffc1,
	"f5":        0xffc2,
	"f6":        0xffc3,
	"f7":        0xffc4,
	"f8":        0xffc5,
	"f9":        0xffc6,
	"f10":       0xffc7,
	"f11":       0xffc8,
	"f12":       0xffc9,
}

var modifierNames = map[string]uint16{
	"shift": xproto.ModMaskShift,
	"ctrl":  xproto.ModMaskControl,
	"alt":   xproto.ModMask1,
	"super": xproto.ModMask4,
}

// modifierMask covers the modifiers hotkeys care about. Lock and NumLock
// never affect a match.
const modifierMask = xproto.ModMaskShift | xproto.ModMaskControl | xproto.ModMask1 | xproto.ModMask4

// Hotkey is a key combination reserved by the application.
type Hotkey struct {
	Spec   string
	Mods   uint16
	Keysym xproto.Keysym
}

// ParseHotkey parses specs such as "ctrl+space" or "super+shift+h".
func ParseHotkey(spec string) (Hotkey, error) {
	hk := Hotkey{Spec: spec}
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < len(parts)-1 {
			mod, ok := modifierNames[p]
			if !ok {
				return Hotkey{}, fmt.Errorf("hotkey %q: unknown modifier %q", spec, p)
			}
			hk.Mods |= mod
			continue
		}
		if sym, ok := keysymNames[p]; ok {
			hk.Keysym = sym
		} else if r := []rune(p); len(r) == 1 && r[0] > 0x20 {
			hk.Keysym = runeKeysym(r[0])
		} else {
			return Hotkey{}, fmt.Errorf("hotkey %q: unknown key %q", spec, p)
		}
	}
	return hk, nil
}

func runeKeysym(r rune) xproto.Keysym {
	if r < 0x100 {
		return xproto.Keysym(r)
	}
	return xproto.Keysym(0x01000000 | uint32(r))
}

// Hotkeys swallows reserved key combinations before they reach the input
// method.
type Hotkeys struct {
	keymap *Keymap
	keys   []Hotkey
}

// ParseHotkeys parses every spec.
func ParseHotkeys(keymap *Keymap, specs []string) (*Hotkeys, error) {
	h := &Hotkeys{keymap: keymap}
	for _, spec := range specs {
		hk, err := ParseHotkey(spec)
		if err != nil {
			return nil, err
		}
		h.keys = append(h.keys, hk)
	}
	return h, nil
}

// Match returns the hotkey ev triggers. Releases match too so the daemon
// never sees half of a combination.
func (h *Hotkeys) Match(ev xim.RawKeyEvent) (Hotkey, bool) {
	if h == nil || h.keymap == nil {
		return Hotkey{}, false
	}
	sym := h.keymap.Keysym(ev.Keycode, 0)
	mods := ev.State & modifierMask
	for _, hk := range h.keys {
		if hk.Keysym == sym && hk.Mods == mods {
			return hk, true
		}
	}
	return Hotkey{}, false
}

// Filter adapts Match to a prefilter.
func (h *Hotkeys) Filter(ev xim.RawKeyEvent) bool {
	_, ok := h.Match(ev)
	return ok
}
