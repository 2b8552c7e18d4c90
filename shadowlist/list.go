// Package shadowlist stores the h1 hashes of domains that must never be
// blocked as a sorted array of little-endian uint32 values.
package shadowlist

import (
	"encoding/binary"
	"fmt"
	"slices"
)

const entryBytes = 4

// List is a read view over a serialized whitelist.
// Lists returned by FromSerialized borrow the caller's buffer.
type List struct {
	data []byte
	n    int
}

// Build sorts and deduplicates hashes. It does not modify its argument.
func Build(hashes []uint32) *List {
	sorted := slices.Clone(hashes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	data := make([]byte, len(sorted)*entryBytes)
	for i, h := range sorted {
		binary.LittleEndian.PutUint32(data[i*entryBytes:], h)
	}
	return &List{data: data, n: len(sorted)}
}

// FromSerialized wraps a serialized whitelist without copying it.
// A zero-length buffer is a valid empty list.
func FromSerialized(buffer []byte) (*List, error) {
	if len(buffer)%entryBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(buffer))
	}
	l := &List{data: buffer, n: len(buffer) / entryBytes}
	for i := 1; i < l.n; i++ {
		if l.at(i-1) >= l.at(i) {
			return nil, fmt.Errorf("%w: entry %d (%08x) after %08x", ErrUnsorted, i, l.at(i), l.at(i-1))
		}
	}
	return l, nil
}

func (l *List) at(i int) uint32 {
	return binary.LittleEndian.Uint32(l.data[i*entryBytes:])
}

// Contains reports whether h1 is in the list.
func (l *List) Contains(h1 uint32) bool {
	if l == nil {
		return false
	}
	lo, hi := 0, l.n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		v := l.at(mid)
		switch {
		case v == h1:
			return true
		case v < h1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

// Hashes returns a copy of the stored hashes in ascending order.
func (l *List) Hashes() []uint32 {
	if l == nil {
		return nil
	}
	out := make([]uint32, l.n)
	for i := range out {
		out[i] = l.at(i)
	}
	return out
}

// Serialize returns the little-endian array.
// The returned slice aliases the list; callers must not modify it.
func (l *List) Serialize() []byte {
	if l == nil {
		return nil
	}
	return l.data
}

// Len returns the number of hashes.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return l.n
}

// Allocated returns the serialized size in bytes.
func (l *List) Allocated() int {
	if l == nil {
		return 0
	}
	return len(l.data)
}

func (l *List) String() string {
	return fmt.Sprintf("ShadowWhitelist{hashes=%d, size=%d}", l.Len(), l.Allocated())
}
