// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// BytePool hands out byte slices from power-of-two size classes.
// Requests above the largest class are allocated and never pooled.
type BytePool struct {
	minShift int
	maxShift int
	classes  []sync.Pool

	gets   atomic.Uint64
	allocs atomic.Uint64
}

// Stats are cumulative pool counters.
type Stats struct {
	Gets   uint64 // calls to Get
	Allocs uint64 // Gets that had to allocate
}

// NewBytePool creates a pool whose classes span minSize..maxSize, both
// rounded up to a power of two.
func NewBytePool(minSize, maxSize int) *BytePool {
	minShift := shiftFor(max(minSize, 1))
	maxShift := max(shiftFor(max(maxSize, 1)), minShift)
	return &BytePool{
		minShift: minShift,
		maxShift: maxShift,
		classes:  make([]sync.Pool, maxShift-minShift+1),
	}
}

// shiftFor returns the exponent of the smallest power of two >= n.
func shiftFor(n int) int {
	return bits.Len(uint(n - 1))
}

// Get returns a slice of length n. Its capacity may be larger.
func (p *BytePool) Get(n int) *[]byte {
	p.gets.Add(1)
	shift := max(shiftFor(max(n, 1)), p.minShift)
	if shift > p.maxShift {
		p.allocs.Add(1)
		b := make([]byte, n)
		return &b
	}
	if v := p.classes[shift-p.minShift].Get(); v != nil {
		bp := v.(*[]byte)
		*bp = (*bp)[:n]
		return bp
	}
	p.allocs.Add(1)
	b := make([]byte, n, 1<<shift)
	return &b
}

// Put returns a slice obtained from Get. Slices of foreign capacity are dropped.
func (p *BytePool) Put(bp *[]byte) {
	if bp == nil {
		return
	}
	c := cap(*bp)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	shift := bits.TrailingZeros(uint(c))
	if shift < p.minShift || shift > p.maxShift {
		return
	}
	*bp = (*bp)[:0]
	p.classes[shift-p.minShift].Put(bp)
}

// Stats returns a snapshot of the counters.
func (p *BytePool) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Allocs: p.allocs.Load()}
}
