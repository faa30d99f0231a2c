// Package ibus implements the xim.Service contract on top of the IBus input
// method daemon, spoken to over its private D-Bus.
//
// Every input context is created on the daemon with preedit and focus
// capabilities. Key events go out through ProcessKeyEvent; committed text
// and preedit updates come back as D-Bus signals, which are queued until
// the event loop calls Dispatch or the next lookup drains them. All
// callbacks into the session layer therefore run on the caller's thread.
package ibus
