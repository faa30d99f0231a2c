package xim

import (
	"errors"

	"github.com/BurntSushi/xgb/xproto"
)

// scriptedLookup is one queued answer of fakeService.Lookup.
type scriptedLookup struct {
	status   LookupStatus
	text     string
	keysym   xproto.Keysym
	required int
	err      error
}

type fakeService struct {
	openErr   error
	styles    []Style
	createErr error

	lookups []scriptedLookup
	filter  func(ev RawKeyEvent) bool

	opens, creates, resets, focuses, unfocuses, destroys int
	bufSizes                                             []int
	events                                               []TranslatedKeyEvent
	callbacks                                            PreeditCallbacks
	createdStyle                                         Style
}

type fakeIC struct{ id int }

func newFakeService() *fakeService {
	return &fakeService{styles: []Style{StylePreeditNothing | StyleStatusNothing, RequiredStyle}}
}

func (f *fakeService) queue(l ...scriptedLookup) { f.lookups = append(f.lookups, l...) }

func (f *fakeService) Open() (IM, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return "im", nil
}

func (f *fakeService) QueryStyles(im IM) ([]Style, error) { return f.styles, nil }

func (f *fakeService) CreateContext(im IM, win WindowInfo, style Style, cb PreeditCallbacks) (IC, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.callbacks = cb
	f.createdStyle = style
	return &fakeIC{id: f.creates}, nil
}

func (f *fakeService) Reset(ic IC) { f.resets++ }
func (f *fakeService) SetFocus(ic IC) { f.focuses++ }
func (f *fakeService) UnsetFocus(ic IC) { f.unfocuses++ }

func (f *fakeService) DestroyContext(ic IC) { f.destroys++ }

func (f *fakeService) FilterEvent(window xproto.Window, ev RawKeyEvent) bool {
	return f.filter != nil && f.filter(ev)
}

// Lookup pops the next scripted answer. Text answers overflow on their own
// when buf is too small, like a real service would.
func (f *fakeService) Lookup(ic IC, ev TranslatedKeyEvent, buf []byte) (LookupResult, error) {
	f.bufSizes = append(f.bufSizes, len(buf))
	f.events = append(f.events, ev)
	if len(f.lookups) == 0 {
		return LookupResult{}, errors.New("fake: no scripted lookup")
	}
	l := f.lookups[0]
	if l.err != nil {
		f.lookups = f.lookups[1:]
		return LookupResult{}, l.err
	}
	if l.status == BufferOverflow {
		f.lookups = f.lookups[1:]
		return LookupResult{Status: BufferOverflow, Required: l.required}, nil
	}
	if l.text != "" && len(l.text) > len(buf) {
		return LookupResult{Status: BufferOverflow, Required: len(l.text) + 1}, nil
	}
	f.lookups = f.lookups[1:]
	n := copy(buf, l.text)
	return LookupResult{Status: l.status, N: n, Keysym: l.keysym}, nil
}

type recordingView struct {
	commits  []CommittedText
	preedits []PreeditChange
	carets   []CaretUpdate
}

func (v *recordingView) NotifyCommittedText(c CommittedText) { v.commits = append(v.commits, c) }
func (v *recordingView) NotifyPreeditChange(p PreeditChange) { v.preedits = append(v.preedits, p) }
func (v *recordingView) NotifyCaret(c CaretUpdate) { v.carets = append(v.carets, c) }

type recordingKeys struct {
	events []RawKeyEvent
}

func (k *recordingKeys) ProcessKey(ev RawKeyEvent) { k.events = append(k.events, ev) }

var testWindow = WindowInfo{ID: 0x400001, Root: 0x1e2, Screen: 0}

func press(code xproto.Keycode) RawKeyEvent {
	return RawKeyEvent{Kind: KeyPress, Keycode: code, Time: 1000}
}

func release(code xproto.Keycode) RawKeyEvent {
	return RawKeyEvent{Kind: KeyRelease, Keycode: code, Time: 1001}
}
