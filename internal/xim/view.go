package xim

// CommittedText finalizes text into the view. Offsets are in UTF-16 code
// units of Text.
type CommittedText struct {
	Text          string
	SelStart      int
	SelEnd        int
	OriginalStart int
	OriginalEnd   int
}

// PreeditChange replaces ChangeLength code units of the window's preedit
// string, starting at ChangeStart. A nil Text leaves the visible text alone
// and only moves the range and caret.
//
// Like every offset handed to a View, ChangeStart, ChangeLength and Caret
// count UTF-16 code units.
type PreeditChange struct {
	Text         *string
	ChangeStart  int
	ChangeLength int
	Caret        int
}

// CaretUpdate moves the preedit caret without touching the text. Position
// counts UTF-16 code units.
type CaretUpdate struct {
	Position  int
	Direction CaretDirection
	Style     CaretStyle
}

// View receives composition and commit notifications for one window.
type View interface {
	NotifyCommittedText(c CommittedText)
	NotifyPreeditChange(p PreeditChange)
	NotifyCaret(c CaretUpdate)
}
