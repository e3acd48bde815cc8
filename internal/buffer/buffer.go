// Package buffer owns data-unit memory and its ownership handle.
//
// Ownership boundary:
//   - a *Buffer has exactly one owner at a time
//   - whoever accepts a Buffer in a call owns it and must Release it once
//   - Release returns memory to the Pool that produced it, never to a global
package buffer

import (
	"sync"
	"sync/atomic"
)

// DefaultHeadroom is reserved in front of every buffer so lower layers can
// prepend headers without copying.
const DefaultHeadroom = 16

// Buffer is an owned data unit. The zero value is not usable; get one from
// a Pool or wrap existing bytes with Wrap.
type Buffer struct {
	backing  []byte
	start    int
	end      int
	pool     *Pool
	released atomic.Bool
}

// Bytes returns the live payload. The slice is invalid after Release.
func (b *Buffer) Bytes() []byte {
	return b.backing[b.start:b.end]
}

func (b *Buffer) Len() int {
	return b.end - b.start
}

// Headroom reports how many bytes Prepend can take without reallocating.
func (b *Buffer) Headroom() int {
	return b.start
}

// Prepend grows the payload by n bytes at the front and returns them.
func (b *Buffer) Prepend(n int) []byte {
	if n > b.start {
		grown := make([]byte, n+len(b.backing)-b.start)
		copy(grown[n:], b.backing[b.start:b.end])
		b.end = n + b.end - b.start
		b.start = 0
		b.backing = grown
		return b.backing[:n]
	}
	b.start -= n
	return b.backing[b.start : b.start+n]
}

// TrimFront drops n bytes from the front of the payload.
func (b *Buffer) TrimFront(n int) bool {
	if n > b.Len() {
		return false
	}
	b.start += n
	return true
}

// Append copies p onto the end of the payload.
func (b *Buffer) Append(p []byte) {
	if b.end+len(p) > len(b.backing) {
		grown := make([]byte, b.end+len(p))
		copy(grown, b.backing[:b.end])
		b.backing = grown
	}
	copy(b.backing[b.end:], p)
	b.end += len(p)
}

// Release gives the buffer back to its pool. Only the first call has an
// effect; it reports whether this call performed the release.
func (b *Buffer) Release() bool {
	if !b.released.CompareAndSwap(false, true) {
		return false
	}
	if b.pool != nil {
		b.pool.put(b)
	}
	return true
}

func (b *Buffer) Released() bool {
	return b.released.Load()
}

// Wrap makes an unpooled buffer around a copy of p.
func Wrap(p []byte) *Buffer {
	backing := make([]byte, DefaultHeadroom+len(p))
	copy(backing[DefaultHeadroom:], p)
	return &Buffer{backing: backing, start: DefaultHeadroom, end: len(backing)}
}

// Stats is a point-in-time view of pool accounting.
type Stats struct {
	Allocated   uint64
	Released    uint64
	Outstanding int64
}

// Pool hands out buffers of a fixed capacity class.
type Pool struct {
	capacity int
	pool     sync.Pool

	allocated atomic.Uint64
	released  atomic.Uint64
}

// NewPool creates a pool whose buffers carry capacity payload bytes plus
// DefaultHeadroom.
func NewPool(capacity int) *Pool {
	p := &Pool{capacity: capacity}
	p.pool.New = func() any {
		b := make([]byte, DefaultHeadroom+capacity)
		return &b
	}
	return p
}

// Get returns an owned buffer with Len() == n. Requests larger than the
// pool capacity get a one-off backing array that is not recycled.
func (p *Pool) Get(n int) *Buffer {
	p.allocated.Add(1)
	var backing []byte
	if n <= p.capacity {
		backing = *p.pool.Get().(*[]byte)
	} else {
		backing = make([]byte, DefaultHeadroom+n)
	}
	return &Buffer{
		backing: backing,
		start:   DefaultHeadroom,
		end:     DefaultHeadroom + n,
		pool:    p,
	}
}

// GetCopy returns an owned buffer holding a copy of payload.
func (p *Pool) GetCopy(payload []byte) *Buffer {
	b := p.Get(len(payload))
	copy(b.Bytes(), payload)
	return b
}

func (p *Pool) Stats() Stats {
	allocated := p.allocated.Load()
	released := p.released.Load()
	return Stats{
		Allocated:   allocated,
		Released:    released,
		Outstanding: int64(allocated) - int64(released),
	}
}

func (p *Pool) put(b *Buffer) {
	p.released.Add(1)
	backing := b.backing
	b.backing = nil
	b.start, b.end = 0, 0
	if cap(backing) == DefaultHeadroom+p.capacity {
		backing = backing[:cap(backing)]
		p.pool.Put(&backing)
	}
}
