// Package domainhash implements the hash shared by the filter builder and
// the runtime lookup. Both sides must produce bit-identical values: any
// divergence turns every blocked domain into a silent miss.
package domainhash

// Constants mirrored from the artifact format. Changing any of them
// invalidates every artifact built so far.
const (
	seed1 = 0xdeadbeef
	seed2 = 0x41c6ce57

	mul1 = 0x85ebca77
	mul2 = 0xc2b2ae3d

	avalanche1 = 0x735a2d97
	avalanche2 = 0xcaf649a9

	// FingerprintBits is the bit depth of every stored fingerprint.
	FingerprintBits = 16
)

// Hash returns the two 32-bit hash states of s.
// s is hashed byte by byte; domains are ASCII by contract.
func Hash(s string) (h1, h2 uint32) {
	return HashSpan(s, 0, len(s))
}

// HashSpan hashes s[start:end] without copying.
func HashSpan(s string, start, end int) (h1, h2 uint32) {
	h1, h2 = seed1, seed2
	for i := start; i < end; i++ {
		ch := uint32(s[i])
		h1 = (h1 ^ ch) * mul1
		h2 = (h2 ^ ch) * mul2
	}
	return finish(h1, h2)
}

// HashBytes is Hash for byte slices.
func HashBytes(b []byte) (h1, h2 uint32) {
	h1, h2 = seed1, seed2
	for _, c := range b {
		ch := uint32(c)
		h1 = (h1 ^ ch) * mul1
		h2 = (h2 ^ ch) * mul2
	}
	return finish(h1, h2)
}

func finish(h1, h2 uint32) (uint32, uint32) {
	h1 ^= (h1 ^ (h2 >> 15)) * avalanche1
	h2 ^= (h2 ^ (h1 >> 15)) * avalanche2
	h1 ^= h2 >> 16
	h2 ^= h1 >> 16
	return h1, h2
}

// Locations maps a hash pair onto three slots of a filter with the given
// capacity. The third slot uses a 64-bit sum so h1+h2 never wraps.
// capacity must be positive.
func Locations(h1, h2, capacity uint32) (h0, l1, l2 uint32) {
	h0 = h1 % capacity
	l1 = h2 % capacity
	l2 = uint32((uint64(h1) + uint64(h2)) % uint64(capacity))
	return
}

// Fingerprint returns the non-zero fingerprint of a hash pair.
// It takes the high half of h1, falls back to the high half of h2 and
// finally to 1, so 0 stays reserved for unconstrained slots.
func Fingerprint(h1, h2 uint32) uint16 {
	fp := uint16(h1 >> 16)
	if fp == 0 {
		fp = uint16(h2 >> 16)
	}
	if fp == 0 {
		fp = 1
	}
	return fp
}
