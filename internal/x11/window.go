package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"imbridge/internal/xim"
)

// eventMask is what a text input window listens for.
const eventMask = xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskFocusChange |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskExposure

// Dial connects to display. An empty display means $DISPLAY.
func Dial(display string) (*xgb.Conn, error) {
	var (
		conn *xgb.Conn
		err  error
	)
	if display == "" {
		conn, err = xgb.NewConn()
	} else {
		conn, err = xgb.NewConnDisplay(display)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to X display %q: %w", display, err)
	}
	return conn, nil
}

// WindowOptions describes the client window.
type WindowOptions struct {
	Title         string
	Width, Height uint16
}

// OpenWindow creates and maps a top-level window on the default screen.
func OpenWindow(conn *xgb.Conn, opts WindowOptions) (xim.WindowInfo, error) {
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return xim.WindowInfo{}, fmt.Errorf("allocate window id: %w", err)
	}
	if opts.Width == 0 {
		opts.Width = 480
	}
	if opts.Height == 0 {
		opts.Height = 120
	}

	err = xproto.CreateWindowChecked(conn, screen.RootDepth, wid, screen.Root,
		0, 0, opts.Width, opts.Height, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{screen.WhitePixel, eventMask}).Check()
	if err != nil {
		return xim.WindowInfo{}, fmt.Errorf("create window: %w", err)
	}

	if opts.Title != "" {
		title := []byte(opts.Title)
		err = xproto.ChangePropertyChecked(conn, xproto.PropModeReplace, wid,
			xproto.AtomWmName, xproto.AtomString, 8, uint32(len(title)), title).Check()
		if err != nil {
			return xim.WindowInfo{}, fmt.Errorf("set window title: %w", err)
		}
	}
	if err := xproto.MapWindowChecked(conn, wid).Check(); err != nil {
		return xim.WindowInfo{}, fmt.Errorf("map window: %w", err)
	}

	return xim.WindowInfo{
		Display: conn,
		ID:      wid,
		Root:    screen.Root,
		Screen:  conn.DefaultScreen,
	}, nil
}
