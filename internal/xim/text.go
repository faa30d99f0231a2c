package xim

import (
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// NativeText is preedit text as handed over by the service. Exactly one of
// MultiByte and Wide is meaningful, selected by WideChar.
type NativeText struct {
	WideChar  bool
	MultiByte []byte
	Wide      []rune
}

func (t *NativeText) present() bool {
	if t == nil {
		return false
	}
	if t.WideChar {
		return t.Wide != nil
	}
	return t.MultiByte != nil
}

// LookupEncoding resolves a charset name such as "UTF-8", "EUC-JP" or
// "GB18030". An empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	return htmlindex.Get(name)
}

// decodeNative converts native preedit text to UTF-8. Conversion failures
// yield the empty string; composition display is best effort.
func decodeNative(t *NativeText, mb encoding.Encoding) string {
	if t == nil {
		return ""
	}
	if t.WideChar {
		return decodeWide(t.Wide)
	}
	if mb == nil || mb == unicode.UTF8 {
		if !utf8.Valid(t.MultiByte) {
			return ""
		}
		return string(t.MultiByte)
	}
	out, err := mb.NewDecoder().Bytes(t.MultiByte)
	if err != nil {
		return ""
	}
	return string(out)
}

// decodeWide converts wide characters to UTF-8 through a scratch buffer
// that does not outlive the call. Any surrogate or out of range value makes
// the whole text undecodable.
func decodeWide(w []rune) string {
	scratch := make([]byte, 0, utf8.UTFMax*len(w))
	defer clear(scratch[:cap(scratch)])
	for _, r := range w {
		if !utf8.ValidRune(r) {
			return ""
		}
		scratch = utf8.AppendRune(scratch, r)
	}
	return string(scratch)
}

// utf16Len returns the length of s in UTF-16 code units, the unit the view
// measures strings in.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
