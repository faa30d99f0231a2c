// Package x11 connects input method sessions to a real X server.
//
// It opens a client window, keeps a keymap snapshot, and runs the event
// loop that feeds key and focus events into an xim.Manager. xgb strips the
// send-event bit before events reach us, so every RawKeyEvent reports
// SendEvent false.
package x11
