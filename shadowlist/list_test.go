package shadowlist

import (
	"encoding/binary"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuild_SortsAndDedups(t *testing.T) {
	in := []uint32{7, 3, 0xffffffff, 3, 0, 7}
	l := Build(in)
	require.Equal(t, []uint32{7, 3, 0xffffffff, 3, 0, 7}, in)
	require.Equal(t, []uint32{0, 3, 7, 0xffffffff}, l.Hashes())
	require.Equal(t, 4, l.Len())
	require.Equal(t, 16, l.Allocated())

	buf := l.Serialize()
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[4:]))
	require.Equal(t, "ShadowWhitelist{hashes=4, size=16}", l.String())
}

func TestContains(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	set := make(map[uint32]struct{})
	var hashes []uint32
	for i := 0; i < 5000; i++ {
		h := r.Uint32()
		set[h] = struct{}{}
		hashes = append(hashes, h)
	}
	l := Build(hashes)

	l2, err := FromSerialized(slices.Clone(l.Serialize()))
	require.NoError(t, err)

	for _, h := range hashes {
		require.True(t, l.Contains(h))
		require.True(t, l2.Contains(h))
	}
	for i := 0; i < 20000; i++ {
		h := r.Uint32()
		_, want := set[h]
		require.Equal(t, want, l.Contains(h), h)
	}
}

func TestEmpty(t *testing.T) {
	l, err := FromSerialized(nil)
	require.NoError(t, err)
	require.Zero(t, l.Len())
	require.False(t, l.Contains(0))

	var nilList *List
	require.False(t, nilList.Contains(1))
	require.Zero(t, nilList.Allocated())

	require.Zero(t, Build(nil).Len())
}

func TestFromSerialized_Errors(t *testing.T) {
	_, err := FromSerialized([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadLength)

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, 9)
	binary.LittleEndian.PutUint32(buf[4:], 2)
	_, err = FromSerialized(buf)
	require.ErrorIs(t, err, ErrUnsorted)

	binary.LittleEndian.PutUint32(buf[4:], 9)
	_, err = FromSerialized(buf)
	require.ErrorIs(t, err, ErrUnsorted)
}

func TestContains_NoAllocs(t *testing.T) {
	l := Build([]uint32{1, 5, 9, 13})
	allocs := testing.AllocsPerRun(1000, func() {
		l.Contains(9)
		l.Contains(10)
	})
	require.Zero(t, allocs)
}
