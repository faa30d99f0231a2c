package xim

import (
	"fmt"

	"imbridge/internal/metrics"
)

// DefaultBufferSize is the initial lookup buffer capacity.
const DefaultBufferSize = 12

// LookupBuffer is the scratch space reused by every lookup of one session.
// Its capacity only grows, and only to the exact size the service asks for.
type LookupBuffer struct {
	data    []byte
	metrics *metrics.IMMetrics
}

// NewLookupBuffer allocates a buffer of size bytes. Sizes below 2 are
// raised to 2 so there is always room for one byte plus the terminator.
func NewLookupBuffer(size int) *LookupBuffer {
	if size < 2 {
		size = 2
	}
	return &LookupBuffer{data: make([]byte, size)}
}

// Cap returns the current capacity.
func (b *LookupBuffer) Cap() int {
	return len(b.data)
}

// grow resizes the buffer to exactly n bytes when n exceeds the capacity.
func (b *LookupBuffer) grow(n int) {
	if n <= len(b.data) {
		return
	}
	b.data = make([]byte, n)
}

// usable is the slice handed to the service: capacity minus one byte of
// terminator headroom.
func (b *LookupBuffer) usable() []byte {
	return b.data[:len(b.data)-1]
}

// Lookup runs one lookup for ev, growing the buffer once if the service
// overflows it. The returned text is copied out of the buffer and is only
// non-empty for LookupChars.
func (b *LookupBuffer) Lookup(svc Service, ic IC, ev TranslatedKeyEvent) (LookupResult, string, error) {
	res, err := svc.Lookup(ic, ev, b.usable())
	if err != nil {
		return res, "", fmt.Errorf("lookup: %w", err)
	}
	if res.Status == BufferOverflow {
		b.metrics.LookupOverflow()
		b.grow(res.Required)
		res, err = svc.Lookup(ic, ev, b.usable())
		if err != nil {
			return res, "", fmt.Errorf("lookup retry: %w", err)
		}
		if res.Status == BufferOverflow {
			b.metrics.ProtocolViolation()
			return res, "", fmt.Errorf("%w: required %d, capacity %d", ErrOverflowProtocol, res.Required, b.Cap())
		}
	}
	if res.Status != LookupChars {
		return res, "", nil
	}
	n := res.N
	if n < 0 || n > len(b.data)-1 {
		return res, "", fmt.Errorf("lookup: service reported %d bytes for a %d byte buffer", n, len(b.data)-1)
	}
	b.data[n] = 0
	return res, string(b.data[:n]), nil
}
