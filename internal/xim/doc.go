// Package xim manages input-method sessions for toolkit windows.
//
// Each window owns one Session. The session lazily opens the native text
// input service, negotiates a callback-driven preedit style and binds an
// input context to the window. Key events flow through the session before
// the toolkit sees them:
//
//	raw key event
//	     ↓
//	Session.FilterKeyEvent ──(service wants it)──→ consumed
//	     ↓
//	Translate → lookup (growable buffer, one overflow retry)
//	     ↓
//	chars       → View.NotifyCommittedText
//	keysym/both → KeyProcessor.ProcessKey
//	none        → KeyProcessor.ProcessKey on release only
//
// Composition ("preedit") state arrives separately through the four
// PreeditCallbacks the service invokes. The Router converts the native
// payloads and forwards them to the same View.
//
// Everything in this package runs on the toolkit's event thread. Nothing
// here is safe for concurrent use, and a Session must not be re-entered
// from inside a lookup.
package xim
