package xim

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// Manager owns the sessions of all windows sharing one service. Each window
// has at most one session and sessions never share a context.
type Manager struct {
	svc      Service
	opts     Options
	sessions map[xproto.Window]*Session
}

// NewManager creates a manager whose sessions use svc and opts.
func NewManager(svc Service, opts Options) *Manager {
	return &Manager{
		svc:      svc,
		opts:     opts,
		sessions: make(map[xproto.Window]*Session),
	}
}

// Attach creates the session for a window. The session stays uninitialized
// until its first EnableOrReset.
func (m *Manager) Attach(win WindowInfo, view View, keys KeyProcessor) (*Session, error) {
	if _, ok := m.sessions[win.ID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrWindowExists, win.ID)
	}
	s := NewSession(m.svc, win, view, keys, m.opts)
	m.sessions[win.ID] = s
	return s, nil
}

// Session returns the session of a window.
func (m *Manager) Session(id xproto.Window) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of attached windows.
func (m *Manager) Len() int { return len(m.sessions) }

// EnableOrReset forwards to the window's session.
func (m *Manager) EnableOrReset(id xproto.Window) error {
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSession, id)
	}
	s.EnableOrReset()
	return nil
}

// Disable forwards to the window's session.
func (m *Manager) Disable(id xproto.Window) error {
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSession, id)
	}
	s.Disable()
	return nil
}

// HasIME reports whether the window's session is enabled.
func (m *Manager) HasIME(id xproto.Window) bool {
	s, ok := m.sessions[id]
	return ok && s.HasIME()
}

// FilterKeyEvent forwards to the window's session. Events for unknown
// windows are not consumed.
func (m *Manager) FilterKeyEvent(id xproto.Window, ev RawKeyEvent) (bool, error) {
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	return s.FilterKeyEvent(ev)
}

// Detach forgets a destroyed window and releases its context.
func (m *Manager) Detach(id xproto.Window) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.destroy()
	delete(m.sessions, id)
}
