package x11

import (
	"context"
	"errors"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"imbridge/internal/logging"
	"imbridge/internal/xim"
)

// Dispatcher is implemented by services that queue asynchronous updates
// for the event loop thread.
type Dispatcher interface {
	Dispatch()
}

// Router is the session side of the event loop.
type Router interface {
	EnableOrReset(id xproto.Window) error
	Disable(id xproto.Window) error
	FilterKeyEvent(id xproto.Window, ev xim.RawKeyEvent) (bool, error)
	Detach(id xproto.Window)
}

// EventSource yields X events. *xgb.Conn implements it.
type EventSource interface {
	WaitForEvent() (xgb.Event, xgb.Error)
}

// DefaultPollInterval is how often queued service updates are applied when
// no X events arrive.
const DefaultPollInterval = 10 * time.Millisecond

// ErrDisconnected is returned by Run when the X connection closes.
var ErrDisconnected = errors.New("x11: connection closed")

// Source runs the event loop of one X connection.
type Source struct {
	events   EventSource
	router   Router
	dispatch Dispatcher
	keys     map[xproto.Window]xim.KeyProcessor
	poll     time.Duration
	log      *logging.Logger
}

// NewSource builds an event loop. dispatch may be nil.
func NewSource(events EventSource, router Router, dispatch Dispatcher, log *logging.Logger) *Source {
	if log == nil {
		log = logging.Default()
	}
	return &Source{
		events:   events,
		router:   router,
		dispatch: dispatch,
		keys:     make(map[xproto.Window]xim.KeyProcessor),
		poll:     DefaultPollInterval,
		log:      log.WithComponent("x11"),
	}
}

// Handle registers the key processor of a window. Keys the input method
// does not consume go there.
func (s *Source) Handle(id xproto.Window, keys xim.KeyProcessor) {
	s.keys[id] = keys
}

type eventOrError struct {
	ev  xgb.Event
	err xgb.Error
}

// Run processes events until ctx is done or the connection closes. Every
// session call happens on the goroutine that called Run.
func (s *Source) Run(ctx context.Context) error {
	ch := make(chan eventOrError, 16)
	go func() {
		defer close(ch)
		for {
			ev, err := s.events.WaitForEvent()
			if ev == nil && err == nil {
				return
			}
			select {
			case ch <- eventOrError{ev, err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.flush()
		case e, ok := <-ch:
			if !ok {
				return ErrDisconnected
			}
			if e.err != nil {
				s.log.Warn("x protocol error", "error", e.err.Error())
				continue
			}
			s.handle(e.ev)
			s.flush()
		}
	}
}

func (s *Source) flush() {
	if s.dispatch != nil {
		s.dispatch.Dispatch()
	}
}

func (s *Source) handle(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		s.key(e.Event, xim.RawKeyEvent{Kind: xim.KeyPress, Time: e.Time, State: e.State, Keycode: e.Detail})
	case xproto.KeyReleaseEvent:
		s.key(e.Event, xim.RawKeyEvent{Kind: xim.KeyRelease, Time: e.Time, State: e.State, Keycode: e.Detail})
	case xproto.FocusInEvent:
		if e.Detail == xproto.NotifyDetailPointer {
			return
		}
		s.logErr(s.router.EnableOrReset(e.Event), "enable", e.Event)
	case xproto.FocusOutEvent:
		if e.Detail == xproto.NotifyDetailPointer {
			return
		}
		s.logErr(s.router.Disable(e.Event), "disable", e.Event)
	case xproto.DestroyNotifyEvent:
		s.router.Detach(e.Window)
		delete(s.keys, e.Window)
	}
}

func (s *Source) key(win xproto.Window, ev xim.RawKeyEvent) {
	consumed, err := s.router.FilterKeyEvent(win, ev)
	if err != nil {
		s.log.Error("filter key event", "window", win, "error", err)
	}
	if consumed {
		return
	}
	if keys, ok := s.keys[win]; ok {
		keys.ProcessKey(ev)
	}
}

func (s *Source) logErr(err error, op string, win xproto.Window) {
	if err != nil {
		s.log.Debug("focus change for unmanaged window", "op", op, "window", win, "error", err)
	}
}
