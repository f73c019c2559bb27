// Package ring implements a bounded, lock-free single-producer/
// single-consumer byte ring: storage for N+1 bytes, two atomically-
// advancing indices (head, consumer-owned; tail, producer-owned), and
// scatter/gather region accessors for device I/O.
package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/c2h5oh/datasize"
)

// Ring is a fixed-capacity byte queue. Exactly one goroutine may call the
// consumer operations (Read, UsedRegions, AdvanceHead) and exactly one
// goroutine may call the producer operations (Write, FreeRegions,
// AdvanceTail); Len and Capacity are safe from either side.
type Ring struct {
	buf  []byte // len(buf) == capacity+1; one slot always stays unused so full and empty differ
	head atomic.Uint64
	tail atomic.Uint64
}

// New allocates a Ring usable for up to capacity bytes.
func New(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{buf: make([]byte, capacity+1)}
}

// NewFromSize parses a human-readable byte size (e.g. "4KiB", "1MB") via
// datasize and allocates a Ring of that capacity.
func NewFromSize(s string) (*Ring, error) {
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(s)); err != nil {
		return nil, fmt.Errorf("ring: parse size %q: %w", s, err)
	}
	return New(int(bs.Bytes())), nil
}

func (r *Ring) mod() uint64 {
	return uint64(len(r.buf))
}

// Capacity returns N, the usable byte capacity (buffer length minus one
// sentinel slot).
func (r *Ring) Capacity() int {
	return len(r.buf) - 1
}

// Len returns (tail-head) mod (N+1). Safe to call from either side or a
// third party; the producer sees an upper bound on its own side, the
// consumer a lower bound, both safe for their respective use.
func (r *Ring) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	m := r.mod()
	return int((tail - head + m) % m)
}

// Read copies at most min(len(buf), Len()) bytes into buf, consumer-only.
func (r *Ring) Read(buf []byte) int {
	n := r.Len()
	if n > len(buf) {
		n = len(buf)
	}
	if n == 0 {
		return 0
	}
	head := r.head.Load()
	m := r.mod()
	start := (head + 1) % m
	if m-start >= uint64(n) {
		copy(buf, r.buf[start:start+uint64(n)])
	} else {
		first := m - start
		copy(buf[:first], r.buf[start:])
		copy(buf[first:n], r.buf[:uint64(n)-first])
	}
	r.advanceHeadRaw(uint64(n))
	return n
}

// Write copies at most min(len(buf), Capacity()-Len()) bytes from buf,
// producer-only.
func (r *Ring) Write(buf []byte) int {
	n := r.Capacity() - r.Len()
	if n > len(buf) {
		n = len(buf)
	}
	if n <= 0 {
		return 0
	}
	tail := r.tail.Load()
	m := r.mod()
	start := (tail + 1) % m
	if m-start >= uint64(n) {
		copy(r.buf[start:start+uint64(n)], buf[:n])
	} else {
		first := m - start
		copy(r.buf[start:], buf[:first])
		copy(r.buf[:uint64(n)-first], buf[first:n])
	}
	r.advanceTailRaw(uint64(n))
	return n
}

// Region is a contiguous span into the ring's backing storage.
type Region struct {
	Data []byte
}

// UsedRegions returns up to two contiguous spans covering the used bytes,
// oldest first, without mutating head/tail. The second span is empty
// unless the used bytes wrap past the end of the backing array.
func (r *Ring) UsedRegions() [2]Region {
	return r.regions(r.head.Load(), r.Len())
}

// FreeRegions returns up to two contiguous spans covering the free bytes,
// without mutating head/tail.
func (r *Ring) FreeRegions() [2]Region {
	free := r.Capacity() - r.Len()
	return r.regions(r.tail.Load(), free)
}

func (r *Ring) regions(from uint64, n int) [2]Region {
	var out [2]Region
	if n <= 0 {
		return out
	}
	m := r.mod()
	start := (from + 1) % m
	if m-start >= uint64(n) {
		out[0].Data = r.buf[start : start+uint64(n)]
		return out
	}
	first := m - start
	out[0].Data = r.buf[start:]
	out[1].Data = r.buf[:uint64(n)-first]
	return out
}

// AdvanceHead advances head by min(k, Len()) — used after external
// scatter/gather reads report bytes consumed from UsedRegions. Consumer-only.
func (r *Ring) AdvanceHead(k int) {
	max := r.Len()
	if k > max {
		k = max
	}
	if k <= 0 {
		return
	}
	r.advanceHeadRaw(uint64(k))
}

// AdvanceTail advances tail by min(k, Capacity()-Len()) — used after
// external scatter/gather writes report bytes produced into FreeRegions.
// Producer-only.
func (r *Ring) AdvanceTail(k int) {
	max := r.Capacity() - r.Len()
	if k > max {
		k = max
	}
	if k <= 0 {
		return
	}
	r.advanceTailRaw(uint64(k))
}

func (r *Ring) advanceHeadRaw(k uint64) {
	r.head.Store((r.head.Load() + k) % r.mod())
}

func (r *Ring) advanceTailRaw(k uint64) {
	r.tail.Store((r.tail.Load() + k) % r.mod())
}
