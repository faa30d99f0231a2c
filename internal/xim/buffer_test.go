package xim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLookupBufferMinimum(t *testing.T) {
	assert.Equal(t, 2, NewLookupBuffer(0).Cap())
	assert.Equal(t, 12, NewLookupBuffer(12).Cap())
}

func TestLookupBufferGrowIsMonotonic(t *testing.T) {
	b := NewLookupBuffer(16)
	b.grow(8)
	assert.Equal(t, 16, b.Cap())
	b.grow(40)
	assert.Equal(t, 40, b.Cap())
	assert.Len(t, b.usable(), 39)
}

func TestLookupBufferTerminates(t *testing.T) {
	svc := newFakeService()
	svc.queue(scriptedLookup{status: LookupChars, text: "abc"})
	b := NewLookupBuffer(8)
	for i := range b.data {
		b.data[i] = 'z'
	}

	res, text, err := b.Lookup(svc, &fakeIC{}, TranslatedKeyEvent{Kind: KeyPress})
	require.NoError(t, err)
	assert.Equal(t, LookupChars, res.Status)
	assert.Equal(t, "abc", text)
	assert.Equal(t, byte(0), b.data[3])
}

func TestLookupBufferKeysymHasNoText(t *testing.T) {
	svc := newFakeService()
	svc.queue(scriptedLookup{status: LookupBoth, text: "a", keysym: 0x61})
	b := NewLookupBuffer(8)

	res, text, err := b.Lookup(svc, &fakeIC{}, TranslatedKeyEvent{Kind: KeyPress})
	require.NoError(t, err)
	assert.Equal(t, LookupBoth, res.Status)
	assert.EqualValues(t, 0x61, res.Keysym)
	assert.Empty(t, text)
}

type lyingService struct{ fakeService }

func (l *lyingService) Lookup(ic IC, ev TranslatedKeyEvent, buf []byte) (LookupResult, error) {
	return LookupResult{Status: LookupChars, N: len(buf) + 5}, nil
}

func TestLookupBufferRejectsBadLength(t *testing.T) {
	b := NewLookupBuffer(4)
	_, _, err := b.Lookup(&lyingService{}, nil, TranslatedKeyEvent{})
	assert.Error(t, err)
}
