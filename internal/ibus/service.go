package ibus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/godbus/dbus/v5"

	"imbridge/internal/logging"
	"imbridge/internal/xim"
)

// Input context capabilities.
const (
	CapPreeditText uint32 = 1 << 0
	CapAuxiliary   uint32 = 1 << 1
	CapLookupTable uint32 = 1 << 2
	CapFocus       uint32 = 1 << 3
	CapProperty    uint32 = 1 << 4
)

// ReleaseMask marks key releases in ProcessKeyEvent state.
const ReleaseMask uint32 = 1 << 30

// evdevOffset is the difference between X keycodes and the evdev codes
// the daemon expects.
const evdevOffset = 8

// Keymap resolves the keysym a keycode produces under a modifier state.
type Keymap interface {
	Keysym(code xproto.Keycode, state uint16) xproto.Keysym
}

// Config configures a Service.
type Config struct {
	// Address is the daemon's D-Bus address. Empty means ResolveAddress.
	Address string

	// ClientName is reported to the daemon when contexts are created.
	ClientName string

	// Timeout bounds every method call. Zero means DefaultTimeout.
	Timeout time.Duration

	// SignalWait bounds how long Lookup waits for the daemon's signals
	// after it consumed a key. The reply to ProcessKeyEvent can arrive
	// before the CommitText it caused. Zero disables the wait.
	SignalWait time.Duration

	Keymap Keymap

	// Prefilter, when set, swallows raw events before the daemon sees
	// them.
	Prefilter func(xim.RawKeyEvent) bool

	Dial   DialFunc
	Logger *logging.Logger
}

// DefaultTimeout bounds method calls to the daemon.
const DefaultTimeout = 2 * time.Second

var errUnknownContext = errors.New("ibus: not an ibus input context")

// Service is an xim.Service backed by the IBus daemon. It is not safe for
// concurrent use.
type Service struct {
	cfg      Config
	bus      Bus
	log      *logging.Logger
	contexts map[dbus.ObjectPath]*inputContext
}

// inputContext is the IC handle handed to sessions.
type inputContext struct {
	path dbus.ObjectPath
	cb   xim.PreeditCallbacks

	// pending holds committed text not yet returned by a lookup.
	pending []string

	// preedit is the daemon's latest composition; shown is what the view
	// was last told.
	preedit []rune
	cursor  int
	visible bool
	shown   []rune
	caret   int

	// retry is the event whose lookup overflowed. Its retry must not
	// reach the daemon a second time.
	retry *pendingLookup
}

type pendingLookup struct {
	ev      xim.TranslatedKeyEvent
	handled bool
	keysym  xproto.Keysym
}

// New returns a service that connects on the first Open.
func New(cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "imbridge"
	}
	if cfg.Dial == nil {
		cfg.Dial = Dial
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		cfg:      cfg,
		log:      log.WithComponent("ibus"),
		contexts: make(map[dbus.ObjectPath]*inputContext),
	}
}

// Open connects to the daemon. Later calls reuse the connection.
func (s *Service) Open() (xim.IM, error) {
	if s.bus != nil {
		return s, nil
	}
	addr := s.cfg.Address
	if addr == "" {
		var err error
		if addr, err = ResolveAddress(); err != nil {
			return nil, err
		}
	}
	bus, err := s.cfg.Dial(addr)
	if err != nil {
		return nil, err
	}
	s.bus = bus
	s.log.Info("connected to ibus", "address", addr)
	return s, nil
}

// QueryStyles reports what the daemon can do for a client that draws its
// own preedit.
func (s *Service) QueryStyles(im xim.IM) ([]xim.Style, error) {
	if s.bus == nil {
		return nil, errors.New("ibus: not connected")
	}
	return []xim.Style{
		xim.StylePreeditCallbacks | xim.StyleStatusNothing,
		xim.StylePreeditNothing | xim.StyleStatusNothing,
	}, nil
}

// CreateContext creates a daemon-side input context for a window.
func (s *Service) CreateContext(im xim.IM, win xim.WindowInfo, style xim.Style, cb xim.PreeditCallbacks) (xim.IC, error) {
	body, err := s.call(BusPath, methodCreateContext, s.cfg.ClientName)
	if err != nil {
		return nil, fmt.Errorf("create input context: %w", err)
	}
	var path dbus.ObjectPath
	if err := dbus.Store(body, &path); err != nil {
		return nil, fmt.Errorf("create input context: %w", err)
	}

	caps := CapFocus
	if style&xim.StylePreeditCallbacks != 0 {
		caps |= CapPreeditText
	}
	if _, err := s.call(path, methodSetCapabilities, caps); err != nil {
		s.call(path, methodDestroy)
		return nil, fmt.Errorf("set capabilities: %w", err)
	}

	ic := &inputContext{path: path, cb: cb}
	s.contexts[path] = ic
	s.log.Debug("input context created", "path", string(path), "window", win.ID)
	return ic, nil
}

// Reset discards the composition in progress.
func (s *Service) Reset(handle xim.IC) {
	ic, ok := handle.(*inputContext)
	if !ok {
		return
	}
	ic.pending = nil
	ic.retry = nil
	s.callLogged(ic.path, methodReset)
}

// SetFocus gives the context input focus.
func (s *Service) SetFocus(handle xim.IC) {
	if ic, ok := handle.(*inputContext); ok {
		s.callLogged(ic.path, methodFocusIn)
	}
}

// UnsetFocus takes input focus away from the context.
func (s *Service) UnsetFocus(handle xim.IC) {
	if ic, ok := handle.(*inputContext); ok {
		s.callLogged(ic.path, methodFocusOut)
	}
}

// DestroyContext releases the daemon-side context.
func (s *Service) DestroyContext(handle xim.IC) {
	ic, ok := handle.(*inputContext)
	if !ok {
		return
	}
	delete(s.contexts, ic.path)
	s.callLogged(ic.path, methodDestroy)
}

// FilterEvent applies the configured prefilter.
func (s *Service) FilterEvent(window xproto.Window, ev xim.RawKeyEvent) bool {
	return s.cfg.Prefilter != nil && s.cfg.Prefilter(ev)
}

// Lookup forwards the key to the daemon and reports the text it committed.
// When buf is too small the commit is kept and the retry for the same
// event is answered without asking the daemon again.
func (s *Service) Lookup(handle xim.IC, ev xim.TranslatedKeyEvent, buf []byte) (xim.LookupResult, error) {
	ic, ok := handle.(*inputContext)
	if !ok {
		return xim.LookupResult{}, errUnknownContext
	}

	var p pendingLookup
	if ic.retry != nil && ic.retry.ev == ev {
		p = *ic.retry
	} else {
		p = pendingLookup{ev: ev, keysym: s.keysym(ev)}
		handled, err := s.processKey(ic, ev, p.keysym)
		if err != nil {
			return xim.LookupResult{}, err
		}
		p.handled = handled
		if handled {
			s.awaitSignal(ic)
		}
	}
	ic.retry = nil
	s.Dispatch()

	if len(ic.pending) > 0 {
		text := strings.Join(ic.pending, "")
		if len(text) > len(buf) {
			ic.retry = &p
			return xim.LookupResult{Status: xim.BufferOverflow, Required: len(text) + 1}, nil
		}
		ic.pending = nil
		return xim.LookupResult{Status: xim.LookupChars, N: copy(buf, text)}, nil
	}
	if !p.handled && p.keysym != 0 {
		return xim.LookupResult{Status: xim.LookupKeySym, Keysym: p.keysym}, nil
	}
	return xim.LookupResult{Status: xim.LookupNone}, nil
}

// awaitSignal handles signals until one for ic arrives or SignalWait
// passes.
func (s *Service) awaitSignal(ic *inputContext) {
	if s.cfg.SignalWait <= 0 || s.bus == nil {
		return
	}
	timer := time.NewTimer(s.cfg.SignalWait)
	defer timer.Stop()
	for {
		select {
		case sig, ok := <-s.bus.Signals():
			if !ok {
				return
			}
			s.handleSignal(sig)
			if sig.Path == ic.path {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func (s *Service) keysym(ev xim.TranslatedKeyEvent) xproto.Keysym {
	if s.cfg.Keymap == nil {
		return 0
	}
	return s.cfg.Keymap.Keysym(ev.Keycode, ev.State)
}

func (s *Service) processKey(ic *inputContext, ev xim.TranslatedKeyEvent, sym xproto.Keysym) (bool, error) {
	state := uint32(ev.State)
	if ev.IsRelease() {
		state |= ReleaseMask
	}
	code := uint32(ev.Keycode)
	if code >= evdevOffset {
		code -= evdevOffset
	}
	body, err := s.call(ic.path, methodProcessKeyEvent, uint32(sym), code, state)
	if err != nil {
		return false, fmt.Errorf("process key event: %w", err)
	}
	var handled bool
	if err := dbus.Store(body, &handled); err != nil {
		return false, fmt.Errorf("process key event: %w", err)
	}
	return handled, nil
}

// Dispatch applies every queued daemon signal. Preedit changes reach the
// session callbacks here. Committed text can only be handed over by a
// lookup, so a commit that arrives after Lookup gave up waiting (see
// Config.SignalWait) is delivered with the next key of that context.
func (s *Service) Dispatch() {
	if s.bus == nil {
		return
	}
	for {
		select {
		case sig, ok := <-s.bus.Signals():
			if !ok {
				return
			}
			s.handleSignal(sig)
		default:
			return
		}
	}
}

func (s *Service) handleSignal(sig *dbus.Signal) {
	ic, ok := s.contexts[sig.Path]
	if !ok {
		return
	}
	switch sig.Name {
	case signalCommitText:
		if len(sig.Body) < 1 {
			return
		}
		text, err := decodeText(sig.Body[0])
		if err != nil {
			s.log.Warn("bad commit signal", "path", string(sig.Path), "error", err)
			return
		}
		ic.pending = append(ic.pending, text)
	case signalUpdatePreedit:
		var (
			v       dbus.Variant
			cursor  uint32
			visible bool
		)
		if err := dbus.Store(sig.Body, &v, &cursor, &visible); err != nil {
			s.log.Warn("bad preedit signal", "path", string(sig.Path), "error", err)
			return
		}
		text, err := decodeText(v)
		if err != nil {
			s.log.Warn("bad preedit signal", "path", string(sig.Path), "error", err)
			return
		}
		ic.preedit = []rune(text)
		ic.cursor = int(cursor)
		ic.visible = visible
		ic.sync()
	case signalShowPreedit:
		ic.visible = true
		ic.sync()
	case signalHidePreedit:
		ic.visible = false
		ic.sync()
	}
}

// sync brings the view in line with the daemon's composition. Text changes
// replace the whole preedit; a cursor move alone is a caret update. IBus
// counts the cursor in characters, views count UTF-16 code units.
func (ic *inputContext) sync() {
	var want []rune
	if ic.visible {
		want = ic.preedit
	}
	cursor := min(ic.cursor, len(want))

	if slices.Equal(want, ic.shown) {
		if cursor != ic.caret && len(want) > 0 {
			ic.caret = cursor
			ic.cb.PreeditCaret(xim.PreeditCaret{
				Position:  utf16Len(want[:cursor]),
				Direction: xim.CaretAbsolutePosition,
				Style:     xim.CaretPrimary,
			})
		}
		return
	}

	if len(ic.shown) == 0 {
		ic.cb.PreeditStart()
	}
	wide := make([]rune, 0, len(want))
	wide = append(wide, want...)
	ic.cb.PreeditDraw(xim.PreeditDraw{
		Text:         &xim.NativeText{WideChar: true, Wide: wide},
		ChangeFirst:  0,
		ChangeLength: utf16Len(ic.shown),
		Caret:        utf16Len(want[:cursor]),
	})
	if len(want) == 0 {
		ic.cb.PreeditDone()
	}
	ic.shown = slices.Clone(want)
	ic.caret = cursor
}

func utf16Len(rs []rune) int {
	n := 0
	for _, r := range rs {
		n += utf16.RuneLen(r)
	}
	return n
}

func (s *Service) call(path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	if s.bus == nil {
		return nil, errors.New("ibus: not connected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	return s.bus.Call(ctx, path, method, args...)
}

func (s *Service) callLogged(path dbus.ObjectPath, method string) {
	if _, err := s.call(path, method); err != nil {
		s.log.Warn("ibus call failed", "method", method, "path", string(path), "error", err)
	}
}

// Close drops the connection. Contexts created on it become invalid.
func (s *Service) Close() error {
	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus = nil
	clear(s.contexts)
	return err
}

var (
	_ xim.Service          = (*Service)(nil)
	_ xim.ContextDestroyer = (*Service)(nil)
)
