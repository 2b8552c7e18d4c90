package xorfilter

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"

	"github.com/starius/domainxor/domainhash"
	"github.com/stretchr/testify/require"
)

func randomDomains(r *rand.Rand, n int, tld string) []string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789-"
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		ln := r.Intn(14) + 3
		b := make([]byte, ln)
		for i := range b {
			b[i] = letters[r.Intn(len(letters)-1)]
		}
		d := string(b) + "." + tld
		if _, has := seen[d]; has {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func requireHolds(t *testing.T, f *Filter, items []string) {
	t.Helper()
	for _, it := range items {
		h1, h2 := domainhash.Hash(it)
		h0, l1, l2 := domainhash.Locations(h1, h2, uint32(f.Capacity()))
		got := f.at(h0) ^ f.at(l1) ^ f.at(l2)
		require.Equalf(t, domainhash.Fingerprint(h1, h2), got, "xor invariant broken for %q", it)
		require.Truef(t, f.Contains(it), "false negative for %q", it)
	}
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = BuildHashes(nil, nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = BuildHashes([]uint32{1}, nil)
	require.ErrorIs(t, err, ErrHashesMismatch)
}

func TestBuild_Single(t *testing.T) {
	f, err := Build([]string{"ads.example.com"})
	require.NoError(t, err)
	require.Equal(t, 32, f.Capacity())
	require.Equal(t, 1, f.Keys())
	require.Equal(t, 1, f.Attempts())
	require.True(t, f.Contains("ads.example.com"))
	require.False(t, f.Contains("ads.example.org"))
	t.Log(f)
}

// Golden bytes for each ordered input.
func TestBuild_GoldenBytes(t *testing.T) {
	cases := []struct {
		items []string
		want  string
	}{
		{
			items: []string{"ads.example.com"},
			want: "00000000000000000000000000005a41000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000",
		},
		{
			items: []string{"ads.example.com", "tracker.net", "doubleclick.net", "example.org", "a.b.c"},
			want: "0000000046e6000000006c5000005a4100000000000000002f2600000000000000000000000000000000000000000000000000000000aaaa0000000000000000",
		},
	}
	for _, tc := range cases {
		f, err := Build(tc.items)
		require.NoError(t, err)
		require.Equal(t, tc.want, hex.EncodeToString(f.Serialize()), "items=%v", tc.items)
		requireHolds(t, f, tc.items)
	}
}

func TestBuild_RetryOnCycle(t *testing.T) {
	// At capacity 32 these keys map to {25,0,25} and {0,18,18}: no
	// location holds a single key, so the first attempt cannot peel.
	items := []string{"r0-157.test", "r1-157.test"}
	for _, it := range items {
		h1, h2 := domainhash.Hash(it)
		h0, l1, l2 := domainhash.Locations(h1, h2, 32)
		t.Logf("%s -> %d %d %d", it, h0, l1, l2)
	}

	f, err := Build(items)
	require.NoError(t, err)
	require.Equal(t, 2, f.Attempts())
	require.Equal(t, 32+1+growConst, f.Capacity())
	requireHolds(t, f, items)
}

func TestBuild_Duplicates(t *testing.T) {
	items := []string{"a.com", "b.com", "a.com", "c.com", "b.com"}
	f, err := Build(items)
	require.NoError(t, err)
	require.Equal(t, 3, f.Keys())
	requireHolds(t, f, items)

	f2, err := Build([]string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)
	require.Equal(t, f2.Serialize(), f.Serialize())
}

func TestBuildHashes_DuplicatePairsFail(t *testing.T) {
	_, err := BuildHashes([]uint32{5, 5}, []uint32{9, 9})
	require.ErrorIs(t, err, ErrConstructionFailed)
}

func TestBuild_NoFalseNegatives(t *testing.T) {
	r := rand.New(rand.NewSource(100))
	for _, n := range []int{1, 2, 3, 10, 31, 32, 33, 100, 1000, 20000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			items := randomDomains(r, n, "com")
			f, err := Build(items)
			require.NoError(t, err)
			require.GreaterOrEqual(t, f.Capacity(), n)
			requireHolds(t, f, items)

			f2, err := FromSerialized(f.Serialize())
			require.NoError(t, err)
			require.Equal(t, f.Capacity(), f2.Capacity())
			for _, it := range items {
				require.True(t, f2.Contains(it), it)
			}
		})
	}
}

func TestBuild_FalsePositiveRate(t *testing.T) {
	r := rand.New(rand.NewSource(200))
	items := randomDomains(r, 50000, "com")
	f, err := Build(items)
	require.NoError(t, err)

	// Probe with a TLD that never occurs in the set.
	const probes = 1000000
	queries := randomDomains(r, probes, "org")
	positives := 0
	for _, q := range queries {
		if f.Contains(q) {
			positives++
		}
	}
	rate := float64(positives) / probes
	t.Logf("false positives: %d of %d (%.5f%%, theoretical %.5f%%)", positives, probes, rate*100, FalsePositiveRate()*100)
	// Expected ~15; allow generous statistical slack.
	require.Less(t, positives, 100)
}

func TestRoundTrip_Identical(t *testing.T) {
	r := rand.New(rand.NewSource(300))
	items := randomDomains(r, 5000, "net")
	f, err := Build(items)
	require.NoError(t, err)

	buf := append([]byte(nil), f.Serialize()...)
	f2, err := FromSerialized(buf)
	require.NoError(t, err)
	require.Equal(t, 0, f2.Keys())
	require.Equal(t, 0, f2.Attempts())

	queries := append(items, randomDomains(r, 20000, "org")...)
	for _, q := range queries {
		require.Equal(t, f.Contains(q), f2.Contains(q), q)
	}
}

func TestContainsSpan(t *testing.T) {
	f, err := Build([]string{"tracker.net"})
	require.NoError(t, err)
	d := "sub.tracker.net"
	require.True(t, f.ContainsSpan(d, 4, len(d)))
	require.False(t, f.ContainsSpan(d, 0, len(d)))
	require.False(t, f.ContainsSpan(d, 12, len(d)))
}

func TestFromSerialized_Errors(t *testing.T) {
	_, err := FromSerialized([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadLength)

	f, err := FromSerialized(nil)
	require.NoError(t, err)
	require.Equal(t, 0, f.Capacity())
	require.False(t, f.Contains("anything.com"))
	require.Equal(t, "XorFilter{empty}", f.String())

	var nilFilter *Filter
	require.False(t, nilFilter.Contains("x.com"))
	require.Equal(t, 0, nilFilter.Allocated())
}

func TestContains_NoAllocs(t *testing.T) {
	f, err := Build([]string{"ads.example.com", "tracker.net"})
	require.NoError(t, err)
	d := "a.b.ads.example.com"
	allocs := testing.AllocsPerRun(1000, func() {
		f.ContainsSpan(d, 4, len(d))
	})
	require.Zero(t, allocs)
}

func BenchmarkBuild(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	items := randomDomains(r, 100000, "com")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(items); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkContains(b *testing.B) {
	r := rand.New(rand.NewSource(2))
	items := randomDomains(r, 100000, "com")
	f, err := Build(items)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	j := 0
	for i := 0; i < b.N; i++ {
		if j == len(items) {
			j = 0
		}
		f.Contains(items[j])
		j++
	}
}
