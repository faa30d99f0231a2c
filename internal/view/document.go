// Package view provides a text document that receives input method
// notifications the way a toolkit text widget would.
package view

import (
	"sync"
	"unicode/utf16"

	"github.com/BurntSushi/xgb/xproto"

	"imbridge/internal/logging"
	"imbridge/internal/xim"
)

// Keysyms handled by ProcessKey.
const (
	keysymBackSpace xproto.Keysym = 0xff08
	keysymReturn    xproto.Keysym = 0xff0d
	keysymKPEnter   xproto.Keysym = 0xff8d
	keysymTab       xproto.Keysym = 0xff09
)

// Keymap resolves keysyms for keys the input method passes through.
type Keymap interface {
	Keysym(code xproto.Keycode, state uint16) xproto.Keysym
}

// RuneFunc maps a keysym to the character it types, or 0.
type RuneFunc func(xproto.Keysym) rune

// Snapshot is a copy of the document state. Caret counts UTF-16 code
// units into Preedit.
type Snapshot struct {
	Text    string
	Preedit string
	Caret   int
}

// Document holds committed text plus the composition in progress. Input
// method callbacks and key processing arrive on the event loop; Snapshot
// may be called from any goroutine.
//
// The preedit is kept in UTF-16 code units, the unit every preedit offset
// and caret position is given in. The caret never rests inside a
// surrogate pair.
type Document struct {
	mu        sync.Mutex
	committed []rune
	preedit   []uint16
	caret     int

	keymap   Keymap
	toRune   RuneFunc
	log      *logging.Logger
	onChange func(Snapshot)
}

// NewDocument returns an empty document. keymap and toRune may be nil, in
// which case ProcessKey ignores every key.
func NewDocument(keymap Keymap, toRune RuneFunc, log *logging.Logger) *Document {
	if log == nil {
		log = logging.Default()
	}
	return &Document{keymap: keymap, toRune: toRune, log: log.WithComponent("view")}
}

// OnChange registers a callback invoked after every change.
func (d *Document) OnChange(fn func(Snapshot)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Snapshot returns the current state.
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Document) snapshotLocked() Snapshot {
	return Snapshot{Text: string(d.committed), Preedit: string(utf16.Decode(d.preedit)), Caret: d.caret}
}

func (d *Document) changed() {
	s := d.snapshotLocked()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(s)
	}
	d.mu.Lock()
}

// NotifyCommittedText appends committed text.
func (d *Document) NotifyCommittedText(c xim.CommittedText) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed = append(d.committed, []rune(c.Text)...)
	d.log.Debug("text committed", "text", c.Text, "sel_start", c.SelStart, "sel_end", c.SelEnd)
	d.changed()
}

// NotifyPreeditChange replaces a range of the preedit. Out of range
// offsets are clamped.
func (d *Document) NotifyPreeditChange(p xim.PreeditChange) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.Text != nil {
		start := d.boundary(clamp(p.ChangeStart, 0, len(d.preedit)), false)
		end := d.boundary(clamp(start+p.ChangeLength, start, len(d.preedit)), true)
		repl := utf16.Encode([]rune(*p.Text))
		next := make([]uint16, 0, len(d.preedit)-(end-start)+len(repl))
		next = append(next, d.preedit[:start]...)
		next = append(next, repl...)
		next = append(next, d.preedit[end:]...)
		d.preedit = next
	}
	d.caret = d.boundary(clamp(p.Caret, 0, len(d.preedit)), false)
	d.log.Debug("preedit changed", "preedit", string(utf16.Decode(d.preedit)), "caret", d.caret)
	d.changed()
}

// NotifyCaret moves the preedit caret.
func (d *Document) NotifyCaret(c xim.CaretUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	forward := false
	switch c.Direction {
	case xim.CaretForwardChar:
		d.caret++
		forward = true
	case xim.CaretBackwardChar:
		d.caret--
	case xim.CaretLineStart:
		d.caret = 0
	case xim.CaretLineEnd:
		d.caret = len(d.preedit)
	case xim.CaretDontChange:
	default:
		d.caret = c.Position
	}
	d.caret = d.boundary(clamp(d.caret, 0, len(d.preedit)), forward)
	d.changed()
}

// ProcessKey handles keys the input method did not consume. Only presses
// edit the document.
func (d *Document) ProcessKey(ev xim.RawKeyEvent) {
	if ev.Kind != xim.KeyPress || d.keymap == nil {
		return
	}
	sym := d.keymap.Keysym(ev.Keycode, ev.State)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch sym {
	case keysymBackSpace:
		if n := len(d.committed); n > 0 {
			d.committed = d.committed[:n-1]
		}
	case keysymReturn, keysymKPEnter:
		d.committed = append(d.committed, '\n')
	case keysymTab:
		d.committed = append(d.committed, '\t')
	default:
		if ev.State&xproto.ModMaskControl != 0 || d.toRune == nil {
			return
		}
		r := d.toRune(sym)
		if r == 0 {
			return
		}
		d.committed = append(d.committed, r)
	}
	d.changed()
}

// boundary moves i off the second half of a surrogate pair, towards the end
// when forward is set and towards the start otherwise.
func (d *Document) boundary(i int, forward bool) int {
	if i <= 0 || i >= len(d.preedit) || !isHighSurrogate(d.preedit[i-1]) || !isLowSurrogate(d.preedit[i]) {
		return i
	}
	if forward {
		return i + 1
	}
	return i - 1
}

func isHighSurrogate(u uint16) bool { return u >= 0xd800 && u < 0xdc00 }

func isLowSurrogate(u uint16) bool { return u >= 0xdc00 && u < 0xe000 }

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

var (
	_ xim.View         = (*Document)(nil)
	_ xim.KeyProcessor = (*Document)(nil)
)
