package xim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// Style is an input-method interaction style: one preedit bit combined with
// one status bit.
type Style uint32

// Style bits, numerically identical to the XIM protocol values.
const (
	StylePreeditArea      Style = 0x0001
	StylePreeditCallbacks Style = 0x0002
	StylePreeditPosition  Style = 0x0004
	StylePreeditNothing   Style = 0x0008
	StylePreeditNone      Style = 0x0010
	StyleStatusArea       Style = 0x0100
	StyleStatusCallbacks  Style = 0x0200
	StyleStatusNothing    Style = 0x0400
	StyleStatusNone       Style = 0x0800
)

// RequiredStyle is the only style a session accepts: composition is drawn by
// the view through callbacks and the service shows no status area.
const RequiredStyle = StylePreeditCallbacks | StyleStatusNothing

func (s Style) String() string {
	names := []struct {
		bit  Style
		name string
	}{
		{StylePreeditArea, "PreeditArea"},
		{StylePreeditCallbacks, "PreeditCallbacks"},
		{StylePreeditPosition, "PreeditPosition"},
		{StylePreeditNothing, "PreeditNothing"},
		{StylePreeditNone, "PreeditNone"},
		{StyleStatusArea, "StatusArea"},
		{StyleStatusCallbacks, "StatusCallbacks"},
		{StyleStatusNothing, "StatusNothing"},
		{StyleStatusNone, "StatusNone"},
	}
	var parts []string
	for _, n := range names {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Style(%#x)", uint32(s))
	}
	return strings.Join(parts, "|")
}

// LookupStatus is the outcome of a lookup call.
type LookupStatus int

const (
	// LookupNone means the service produced nothing for this event.
	LookupNone LookupStatus = iota
	// LookupChars means committed text was written into the buffer.
	LookupChars
	// LookupKeySym means only a keysym was produced.
	LookupKeySym
	// LookupBoth means a keysym and text were produced.
	LookupBoth
	// BufferOverflow means the supplied buffer was too small.
	BufferOverflow
)

func (s LookupStatus) String() string {
	switch s {
	case LookupNone:
		return "none"
	case LookupChars:
		return "chars"
	case LookupKeySym:
		return "keysym"
	case LookupBoth:
		return "both"
	case BufferOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("LookupStatus(%d)", int(s))
	}
}

// LookupResult is returned by Service.Lookup.
type LookupResult struct {
	Status LookupStatus

	// N is the number of bytes written into the buffer. Only meaningful
	// for LookupChars and LookupBoth.
	N int

	Keysym xproto.Keysym

	// Required is the total buffer size, including one byte of terminator
	// headroom, needed to hold the result. Only set with BufferOverflow.
	Required int
}

// IM is an opaque handle to an opened input-method service.
type IM any

// IC is an opaque handle to an input context bound to one window.
type IC any

// Service is the native text input service.
//
// Implementations call the PreeditCallbacks passed to CreateContext on the
// same thread that drives the session.
type Service interface {
	Open() (IM, error)
	QueryStyles(im IM) ([]Style, error)
	CreateContext(im IM, win WindowInfo, style Style, cb PreeditCallbacks) (IC, error)
	Reset(ic IC)
	SetFocus(ic IC)
	UnsetFocus(ic IC)

	// Lookup writes committed text for ev into buf. A buffer that is too
	// small yields BufferOverflow with Required set.
	Lookup(ic IC, ev TranslatedKeyEvent, buf []byte) (LookupResult, error)

	// FilterEvent reports whether the platform wants to consume the raw
	// event outright, before the input method sees it.
	FilterEvent(window xproto.Window, ev RawKeyEvent) bool
}

// ContextDestroyer is implemented by services that can release an input
// context when its window goes away.
type ContextDestroyer interface {
	DestroyContext(ic IC)
}

// KeyProcessor is the toolkit's normal key handling path.
type KeyProcessor interface {
	ProcessKey(ev RawKeyEvent)
}

// KeyProcessorFunc adapts a function to KeyProcessor.
type KeyProcessorFunc func(ev RawKeyEvent)

// ProcessKey calls f(ev).
func (f KeyProcessorFunc) ProcessKey(ev RawKeyEvent) { f(ev) }

var (
	// ErrOverflowProtocol is returned when the service reports a buffer
	// overflow again after the buffer was grown to the size it asked for.
	ErrOverflowProtocol = errors.New("xim: lookup overflowed twice")

	// ErrNoSession is returned for windows without an attached session.
	ErrNoSession = errors.New("xim: no session for window")

	// ErrWindowExists is returned when a window already has a session.
	ErrWindowExists = errors.New("xim: window already has a session")
)
