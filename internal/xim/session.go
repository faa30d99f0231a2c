package xim

import (
	"golang.org/x/text/encoding"

	"imbridge/internal/logging"
	"imbridge/internal/metrics"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateUninitialized: no service or context has been opened yet.
	StateUninitialized State = iota
	// StateFailed: opening the service, negotiating a style or creating the
	// context failed. The session never tries again.
	StateFailed
	// StateDisabled: the context exists but does not have input focus.
	StateDisabled
	// StateEnabled: the context has input focus and key events are filtered.
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// Options tunes a Session. The zero value is usable.
type Options struct {
	// BufferSize is the initial lookup buffer capacity. Zero means
	// DefaultBufferSize.
	BufferSize int

	// Encoding decodes multibyte preedit text. Nil means UTF-8.
	Encoding encoding.Encoding

	Logger  *logging.Logger
	Metrics *metrics.IMMetrics
}

// Session is the input-method state of one window.
type Session struct {
	svc  Service
	win  WindowInfo
	view View
	keys KeyProcessor

	router *Router
	buf    *LookupBuffer

	im    IM
	ic    IC
	style Style
	state State

	log     *logging.Logger
	metrics *metrics.IMMetrics
}

// NewSession returns an uninitialized session for win. Nothing is opened
// until the first EnableOrReset.
func NewSession(svc Service, win WindowInfo, view View, keys KeyProcessor, opts Options) *Session {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	buf := NewLookupBuffer(size)
	buf.metrics = opts.Metrics
	return &Session{
		svc:     svc,
		win:     win,
		view:    view,
		keys:    keys,
		router:  NewRouter(view, opts.Encoding, opts.Metrics),
		buf:     buf,
		log:     log.WithComponent("xim"),
		metrics: opts.Metrics,
	}
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Style returns the negotiated interaction style, or zero before creation.
func (s *Session) Style() Style { return s.style }

// Window returns the identifiers of the owning window.
func (s *Session) Window() WindowInfo { return s.win }

// HasIME reports whether key events are currently routed through the input
// method.
func (s *Session) HasIME() bool {
	return s.state == StateEnabled
}

// BufferCap returns the lookup buffer capacity.
func (s *Session) BufferCap() int { return s.buf.Cap() }

// EnableOrReset gives the window's input context focus, creating it on the
// first call. An existing context is always reset first, discarding any
// composition in progress. After a failed creation this is a no-op.
func (s *Session) EnableOrReset() {
	switch s.state {
	case StateFailed:
		return
	case StateUninitialized:
		if !s.create() {
			s.state = StateFailed
			s.metrics.SessionFailed()
			return
		}
		s.metrics.SessionCreated()
	default:
		s.svc.Reset(s.ic)
	}
	s.svc.SetFocus(s.ic)
	if s.state != StateEnabled {
		s.metrics.SessionEnabled()
	}
	s.state = StateEnabled
}

// Disable removes input focus from the context. The context and service
// handles are kept for the next EnableOrReset.
func (s *Session) Disable() {
	if s.ic == nil {
		return
	}
	s.svc.UnsetFocus(s.ic)
	if s.state == StateEnabled {
		s.metrics.SessionDisabled()
	}
	s.state = StateDisabled
}

func (s *Session) create() bool {
	im, err := s.svc.Open()
	if err != nil || im == nil {
		s.log.Warn("input method unavailable", "window", s.win.ID, "error", err)
		return false
	}
	styles, err := s.svc.QueryStyles(im)
	if err != nil {
		s.log.Warn("query input styles", "window", s.win.ID, "error", err)
		return false
	}
	style, ok := pickStyle(styles)
	if !ok {
		s.log.Warn("no callback preedit style", "window", s.win.ID, "styles", len(styles))
		return false
	}
	ic, err := s.svc.CreateContext(im, s.win, style, s.router)
	if err != nil || ic == nil {
		s.log.Warn("create input context", "window", s.win.ID, "error", err)
		return false
	}
	s.im, s.ic, s.style = im, ic, style
	s.log.Debug("input context created", "window", s.win.ID, "style", style.String())
	return true
}

func pickStyle(styles []Style) (Style, bool) {
	for _, st := range styles {
		if st == RequiredStyle {
			return st, true
		}
	}
	return 0, false
}

// FilterKeyEvent routes a key event through the input method. It returns
// false when the session is not enabled or ev is not a key event; the
// caller then handles ev itself. Otherwise the event is consumed, and
// whatever the lookup produced has already been delivered to the view or
// the key processor.
//
// The only error is a lookup failure such as ErrOverflowProtocol. The event
// still counts as consumed.
func (s *Session) FilterKeyEvent(ev RawKeyEvent) (bool, error) {
	if s.state != StateEnabled {
		return false, nil
	}
	if ev.Kind != KeyPress && ev.Kind != KeyRelease {
		return false, nil
	}
	if s.svc.FilterEvent(s.win.ID, ev) {
		return true, nil
	}

	s.metrics.Lookup()
	timer := s.metrics.LookupTimer()
	res, text, err := s.buf.Lookup(s.svc, s.ic, Translate(s.win, ev))
	timer.Stop()
	if err != nil {
		s.log.Error("key lookup failed", "window", s.win.ID, "kind", ev.Kind.String(), "error", err)
		return true, err
	}

	switch res.Status {
	case LookupNone:
		if ev.Kind == KeyRelease {
			s.keys.ProcessKey(ev)
		}
	case LookupKeySym, LookupBoth:
		s.keys.ProcessKey(ev)
	case LookupChars:
		s.commit(text)
	}
	return true, nil
}

func (s *Session) commit(text string) {
	n := utf16Len(text)
	s.metrics.Commit()
	s.view.NotifyCommittedText(CommittedText{
		Text:     text,
		SelStart: n,
		SelEnd:   n,
	})
}

// destroy releases the context when the service supports it.
func (s *Session) destroy() {
	if s.ic == nil {
		return
	}
	if d, ok := s.svc.(ContextDestroyer); ok {
		d.DestroyContext(s.ic)
	}
	if s.state == StateEnabled {
		s.metrics.SessionDisabled()
	}
	s.im, s.ic = nil, nil
	s.state = StateFailed
}
