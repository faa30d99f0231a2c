package ibus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// D-Bus names of the daemon.
const (
	BusName               = "org.freedesktop.IBus"
	BusPath               = dbus.ObjectPath("/org/freedesktop/IBus")
	BusInterface          = "org.freedesktop.IBus"
	InputContextInterface = "org.freedesktop.IBus.InputContext"
	ServiceInterface      = "org.freedesktop.IBus.Service"
	signalQueueLen        = 64
	methodCreateContext   = BusInterface + ".CreateInputContext"
	methodProcessKeyEvent = InputContextInterface + ".ProcessKeyEvent"
	methodSetCapabilities = InputContextInterface + ".SetCapabilities"
	methodFocusIn         = InputContextInterface + ".FocusIn"
	methodFocusOut        = InputContextInterface + ".FocusOut"
	methodReset           = InputContextInterface + ".Reset"
	methodDestroy         = ServiceInterface + ".Destroy"
	signalCommitText      = InputContextInterface + ".CommitText"
	signalUpdatePreedit   = InputContextInterface + ".UpdatePreeditText"
	signalShowPreedit     = InputContextInterface + ".ShowPreeditText"
	signalHidePreedit     = InputContextInterface + ".HidePreeditText"
)

// Bus is the part of a D-Bus connection the service needs.
type Bus interface {
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error)
	Signals() <-chan *dbus.Signal
	Close() error
}

// DialFunc connects to the daemon at a D-Bus address.
type DialFunc func(addr string) (Bus, error)

type connBus struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
}

// Dial connects to the daemon's private bus and subscribes to input
// context signals.
func Dial(addr string) (Bus, error) {
	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to ibus at %s: %w", addr, err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface(InputContextInterface)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to ibus signals: %w", err)
	}
	b := &connBus{conn: conn, signals: make(chan *dbus.Signal, signalQueueLen)}
	conn.Signal(b.signals)
	return b, nil
}

func (b *connBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := b.conn.Object(BusName, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

func (b *connBus) Signals() <-chan *dbus.Signal { return b.signals }

func (b *connBus) Close() error {
	b.conn.RemoveSignal(b.signals)
	return b.conn.Close()
}
