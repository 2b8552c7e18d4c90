// Package xorfilter builds and queries 3-wise XOR filters with 16-bit
// fingerprints over domain strings.
//
// The serialized form is a raw little-endian array of uint16 fingerprints
// with no header. The capacity is the array length.
package xorfilter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/starius/domainxor/domainhash"
)

// Constants shared with every runtime reading the artifacts.
const (
	fingerprintBytes = domainhash.FingerprintBits / 8

	loadFactor  = 1.23
	minCapacity = 32
	growFactor  = 0.05
	growConst   = 13
	maxAttempts = 100
)

// Filter is a read view over serialized fingerprints.
// Filters returned by FromSerialized borrow the caller's buffer.
type Filter struct {
	data     []byte
	capacity uint32

	keys     int
	attempts int
}

// Build constructs a filter containing items.
// Items are deduplicated by hash pair; the first occurrence wins, so the
// same ordered input always produces the same bytes.
func Build(items []string) (*Filter, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}
	h1s := make([]uint32, 0, len(items))
	h2s := make([]uint32, 0, len(items))
	seen := make(map[uint64]struct{}, len(items))
	for _, s := range items {
		h1, h2 := domainhash.Hash(s)
		pair := uint64(h1)<<32 | uint64(h2)
		if _, has := seen[pair]; has {
			continue
		}
		seen[pair] = struct{}{}
		h1s = append(h1s, h1)
		h2s = append(h2s, h2)
	}
	return build(h1s, h2s)
}

// BuildHashes constructs a filter from precomputed hash pairs.
// Pairs must be unique: two equal pairs can never be peeled.
func BuildHashes(h1s, h2s []uint32) (*Filter, error) {
	if len(h1s) != len(h2s) {
		return nil, ErrHashesMismatch
	}
	if len(h1s) == 0 {
		return nil, ErrEmptyInput
	}
	return build(h1s, h2s)
}

func build(h1s, h2s []uint32) (*Filter, error) {
	size := len(h1s)
	initial := math.Ceil(float64(size) * loadFactor)
	growth := math.Ceil(float64(size)*growFactor) + growConst
	if initial+growth*maxAttempts > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyItems, size)
	}
	capacity := uint32(initial)
	if capacity < minCapacity {
		capacity = minCapacity
	}

	p := newPeeler(size)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if fingerprints, ok := p.try(h1s, h2s, capacity); ok {
			return &Filter{
				data:     encode(fingerprints),
				capacity: capacity,
				keys:     size,
				attempts: attempt,
			}, nil
		}
		// The hypergraph has a 2-core at this capacity.
		capacity += uint32(growth)
	}
	return nil, fmt.Errorf("%w: %d keys after %d attempts (last capacity %d)",
		ErrConstructionFailed, size, maxAttempts, capacity)
}

type stackEntry struct {
	key uint32
	loc uint32
}

// peeler owns the scratch space reused across attempts.
type peeler struct {
	counts  []uint32
	xors    []uint32
	visited []bool
	stack   []stackEntry
}

func newPeeler(size int) *peeler {
	return &peeler{
		visited: make([]bool, size),
		stack:   make([]stackEntry, 0, size),
	}
}

// try runs one peeling attempt. Each location keeps the number of keys
// mapped to it and the XOR of their indices, which identifies the sole
// key once the count drops to 1.
func (p *peeler) try(h1s, h2s []uint32, capacity uint32) ([]uint16, bool) {
	if cap(p.counts) < int(capacity) {
		p.counts = make([]uint32, capacity)
		p.xors = make([]uint32, capacity)
	}
	counts := p.counts[:capacity]
	xors := p.xors[:capacity]
	clear(counts)
	clear(xors)
	clear(p.visited)
	stack := p.stack[:0]

	for i := range h1s {
		key := uint32(i)
		h0, l1, l2 := domainhash.Locations(h1s[i], h2s[i], capacity)
		counts[h0]++
		xors[h0] ^= key
		counts[l1]++
		xors[l1] ^= key
		counts[l2]++
		xors[l2] ^= key
	}

	for loc := uint32(0); loc < capacity; loc++ {
		if counts[loc] != 1 {
			continue
		}
		key := xors[loc]
		if !p.visited[key] {
			p.visited[key] = true
			stack = append(stack, stackEntry{key: key, loc: loc})
		}
	}

	for next := 0; next < len(stack); next++ {
		e := stack[next]
		h0, l1, l2 := domainhash.Locations(h1s[e.key], h2s[e.key], capacity)
		for _, loc := range [3]uint32{h0, l1, l2} {
			if loc == e.loc {
				continue
			}
			if counts[loc] > 0 {
				counts[loc]--
				xors[loc] ^= e.key
			}
			if counts[loc] == 1 {
				neighbor := xors[loc]
				if !p.visited[neighbor] {
					p.visited[neighbor] = true
					stack = append(stack, stackEntry{key: neighbor, loc: loc})
				}
			}
		}
	}
	p.stack = stack

	if len(stack) != len(h1s) {
		return nil, false
	}

	// Last peeled first: its other two slots are final or still zero.
	fingerprints := make([]uint16, capacity)
	for i := len(stack) - 1; i >= 0; i-- {
		e := stack[i]
		h1, h2 := h1s[e.key], h2s[e.key]
		h0, l1, l2 := domainhash.Locations(h1, h2, capacity)
		var other uint16
		if h0 != e.loc {
			other ^= fingerprints[h0]
		}
		if l1 != e.loc {
			other ^= fingerprints[l1]
		}
		if l2 != e.loc {
			other ^= fingerprints[l2]
		}
		fingerprints[e.loc] = domainhash.Fingerprint(h1, h2) ^ other
	}
	return fingerprints, true
}

func encode(fingerprints []uint16) []byte {
	buf := make([]byte, len(fingerprints)*fingerprintBytes)
	for i, fp := range fingerprints {
		binary.LittleEndian.PutUint16(buf[i*fingerprintBytes:], fp)
	}
	return buf
}

// FromSerialized wraps a serialized filter without copying it.
// A zero-length buffer is a valid empty filter that matches nothing.
func FromSerialized(buffer []byte) (*Filter, error) {
	if len(buffer)%fingerprintBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(buffer))
	}
	n := len(buffer) / fingerprintBytes
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d slots", ErrTooManyItems, n)
	}
	return &Filter{
		data:     buffer,
		capacity: uint32(n),
	}, nil
}

// Serialize returns the little-endian fingerprint array.
// The returned slice aliases the filter; callers must not modify it.
func (f *Filter) Serialize() []byte {
	if f == nil {
		return nil
	}
	return f.data
}

// Contains reports whether s may be in the set.
func (f *Filter) Contains(s string) bool {
	return f.ContainsSpan(s, 0, len(s))
}

// ContainsSpan reports whether s[start:end] may be in the set.
func (f *Filter) ContainsSpan(s string, start, end int) bool {
	h1, h2 := domainhash.HashSpan(s, start, end)
	return f.Probe(h1, h2)
}

// Probe tests a precomputed hash pair.
func (f *Filter) Probe(h1, h2 uint32) bool {
	if f == nil || f.capacity == 0 {
		return false
	}
	h0, l1, l2 := domainhash.Locations(h1, h2, f.capacity)
	return domainhash.Fingerprint(h1, h2) == f.at(h0)^f.at(l1)^f.at(l2)
}

func (f *Filter) at(i uint32) uint16 {
	return binary.LittleEndian.Uint16(f.data[int(i)*fingerprintBytes:])
}

// Capacity returns the number of fingerprint slots.
func (f *Filter) Capacity() int {
	if f == nil {
		return 0
	}
	return int(f.capacity)
}

// Keys returns the number of distinct keys the filter was built from.
// It is 0 for filters loaded with FromSerialized.
func (f *Filter) Keys() int {
	if f == nil {
		return 0
	}
	return f.keys
}

// Attempts returns how many capacities were tried before peeling
// succeeded. It is 0 for filters loaded with FromSerialized.
func (f *Filter) Attempts() int {
	if f == nil {
		return 0
	}
	return f.attempts
}

// Allocated returns the serialized size in bytes.
func (f *Filter) Allocated() int {
	if f == nil {
		return 0
	}
	return len(f.data)
}

// FalsePositiveRate returns the theoretical false positive rate.
func FalsePositiveRate() float64 {
	return 1 / math.Exp2(domainhash.FingerprintBits)
}

// String returns a short summary of the filter.
func (f *Filter) String() string {
	if f == nil || f.capacity == 0 {
		return "XorFilter{empty}"
	}
	if f.keys == 0 {
		return fmt.Sprintf("XorFilter{capacity=%d, bits=%d, size=%d}",
			f.capacity, domainhash.FingerprintBits, len(f.data))
	}
	bitsPerKey := float64(len(f.data)*8) / float64(f.keys)
	return fmt.Sprintf("XorFilter{keys=%d, capacity=%d, bits=%d, attempts=%d, size=%d, bits_per_key=%.2f, fpr=%.4f%%}",
		f.keys, f.capacity, domainhash.FingerprintBits, f.attempts, len(f.data), bitsPerKey, FalsePositiveRate()*100)
}
