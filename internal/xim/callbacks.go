package xim

import (
	"golang.org/x/text/encoding"

	"imbridge/internal/metrics"
)

// CaretDirection is how the service wants the preedit caret moved.
type CaretDirection int

// Caret directions, in XIM protocol order.
const (
	CaretForwardChar CaretDirection = iota
	CaretBackwardChar
	CaretForwardWord
	CaretBackwardWord
	CaretUpLine
	CaretDownLine
	CaretNextLine
	CaretPreviousLine
	CaretLineStart
	CaretLineEnd
	CaretAbsolutePosition
	CaretDontChange
)

// CaretStyle is the visual style of the preedit caret.
type CaretStyle int

const (
	CaretInvisible CaretStyle = iota
	CaretPrimary
	CaretSecondary
)

// NoRestriction is the PreeditStart answer that leaves composition length
// and placement up to the service.
const NoRestriction = -1

// PreeditDraw is the payload of a draw callback. The Router forwards the
// offsets unchanged, so services report them in UTF-16 code units.
type PreeditDraw struct {
	// Text is nil when the visible text is unchanged.
	Text         *NativeText
	ChangeFirst  int
	ChangeLength int
	Caret        int
}

// PreeditCaret is the payload of a caret callback.
type PreeditCaret struct {
	Position  int
	Direction CaretDirection
	Style     CaretStyle
}

// PreeditCallbacks is registered with the service when an input context is
// created. The service invokes it whenever the composition changes.
type PreeditCallbacks interface {
	// PreeditStart returns the maximum preedit length, or NoRestriction.
	PreeditStart() int
	PreeditDone()
	PreeditDraw(d PreeditDraw)
	PreeditCaret(c PreeditCaret)
}

// Router forwards preedit callbacks to the view it was created for.
type Router struct {
	view    View
	decoder encoding.Encoding
	metrics *metrics.IMMetrics
}

// NewRouter binds callbacks to view. mb decodes multibyte preedit text; nil
// means UTF-8.
func NewRouter(view View, mb encoding.Encoding, m *metrics.IMMetrics) *Router {
	return &Router{view: view, decoder: mb, metrics: m}
}

// PreeditStart never restricts the composition.
func (r *Router) PreeditStart() int {
	return NoRestriction
}

// PreeditDone is a no-op: the end of a composition shows up as a clearing
// draw or a focus change.
func (r *Router) PreeditDone() {}

// PreeditDraw converts the native text, if any, and forwards the change.
func (r *Router) PreeditDraw(d PreeditDraw) {
	change := PreeditChange{
		ChangeStart:  d.ChangeFirst,
		ChangeLength: d.ChangeLength,
		Caret:        d.Caret,
	}
	if d.Text.present() {
		s := decodeNative(d.Text, r.decoder)
		change.Text = &s
	}
	r.metrics.PreeditDraw()
	r.view.NotifyPreeditChange(change)
}

// PreeditCaret forwards caret updates unchanged.
func (r *Router) PreeditCaret(c PreeditCaret) {
	r.metrics.CaretUpdate()
	r.view.NotifyCaret(CaretUpdate{
		Position:  c.Position,
		Direction: c.Direction,
		Style:     c.Style,
	})
}

var _ PreeditCallbacks = (*Router)(nil)
