package xim

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// EventKind is the kind of a raw toolkit event.
type EventKind int

const (
	// OtherEvent is anything that is not a key press or release.
	OtherEvent EventKind = iota
	KeyPress
	KeyRelease
)

func (k EventKind) String() string {
	switch k {
	case KeyPress:
		return "press"
	case KeyRelease:
		return "release"
	default:
		return "other"
	}
}

// RawKeyEvent is a key event as delivered by the windowing event source.
type RawKeyEvent struct {
	Kind EventKind

	// SendEvent is set when the event was synthesized by another client.
	SendEvent bool

	Time    xproto.Timestamp
	State   uint16
	Keycode xproto.Keycode
}

// WindowInfo carries the platform identifiers of the window that owns a
// session. It is captured once, when the session is attached.
type WindowInfo struct {
	Display *xgb.Conn
	ID      xproto.Window
	Root    xproto.Window
	Screen  int
}

// TranslatedKeyEvent is the representation the text input service expects
// for a lookup. It is built by Translate and never mutated afterwards.
type TranslatedKeyEvent struct {
	Kind       EventKind
	SendEvent  bool
	Display    *xgb.Conn
	Window     xproto.Window
	Subwindow  xproto.Window
	Root       xproto.Window
	Time       xproto.Timestamp
	State      uint16
	Keycode    xproto.Keycode
	SameScreen bool
}

// Translate converts a raw key event into the lookup representation for the
// given window. The window id fills both the window and subwindow slots.
// Callers must only pass press or release events.
func Translate(win WindowInfo, ev RawKeyEvent) TranslatedKeyEvent {
	return TranslatedKeyEvent{
		Kind:       ev.Kind,
		SendEvent:  ev.SendEvent,
		Display:    win.Display,
		Window:     win.ID,
		Subwindow:  win.ID,
		Root:       win.Root,
		Time:       ev.Time,
		State:      ev.State,
		Keycode:    ev.Keycode,
		SameScreen: true,
	}
}

// IsRelease reports whether the event is a key release.
func (e TranslatedKeyEvent) IsRelease() bool {
	return e.Kind == KeyRelease
}

// XEvent returns the event in X11 wire form, suitable for
// xproto.SendEvent or for services that speak the core protocol.
func (e TranslatedKeyEvent) XEvent() xgb.Event {
	press := xproto.KeyPressEvent{
		Detail:     e.Keycode,
		Time:       e.Time,
		Root:       e.Root,
		Event:      e.Window,
		Child:      e.Subwindow,
		State:      e.State,
		SameScreen: e.SameScreen,
	}
	if e.Kind == KeyRelease {
		return xproto.KeyReleaseEvent(press)
	}
	return press
}
