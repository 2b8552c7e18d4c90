package domainxor

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var parityLabels = []string{"a", "b", "ads", "cdn", "example", "tracker", "co", "uk", "com", "net", "io", "github", "x-y", "z_1"}

func randomDomain(r *rand.Rand, maxLabels int) string {
	n := r.Intn(maxLabels) + 1
	parts := make([]string, n)
	for i := range parts {
		parts[i] = parityLabels[r.Intn(len(parityLabels))]
	}
	return strings.Join(parts, ".")
}

func paritySets(r *rand.Rand) (exact, wildcard []string, psl map[string]struct{}) {
	psl = toSet(testSuffixes)
	for _, s := range []string{"co.uk", "github.io"} {
		psl[s] = struct{}{}
	}
	var raw []string
	for i := 0; i < 300; i++ {
		d := randomDomain(r, 4)
		if r.Intn(2) == 0 {
			d = "*." + d
		}
		raw = append(raw, d)
	}
	sets := Classify(raw, psl)
	return sets.Exact, sets.Wildcard, psl
}

func TestNaiveDomainSet(t *testing.T) {
	n := NewNaiveDomainSet([]string{"ads.example.com"}, []string{"tracker.net", "example.co.uk"}, toSet([]string{"net", "uk", "co.uk"}))
	require.Equal(t, 3, n.Len())

	cases := map[string]bool{
		"ads.example.com":   true,
		"x.ads.example.com": false,
		"tracker.net":       true,
		"a.b.tracker.net":   true,
		"net":               false,
		"example.co.uk":     true,
		"a.example.co.uk":   true,
		"co.uk":             false,
	}
	for d, want := range cases {
		got, err := n.Find(d)
		require.NoError(t, err, d)
		require.Equal(t, want, got, d)
	}

	for _, bad := range []string{"", "tracker.net.", "Tracker.net", "a b.net", strings.Repeat("a", 254)} {
		_, err := n.Find(bad)
		require.Error(t, err, bad)
	}
}

func TestDomainExists_MatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	exact, wildcard, psl := paritySets(r)
	e := compileEngine(t, exact, wildcard, SuffixList(psl))
	naive := NewNaiveDomainSet(exact, wildcard, psl)

	var falsePositives, matched int
	check := func(d string) {
		want, err := naive.Find(d)
		if err != nil {
			return
		}
		got := e.DomainExists(d)
		require.False(t, want && !got, "false negative for %q", d)
		if got && !want {
			falsePositives++
		}
		if want {
			matched++
		}
	}
	for _, d := range append(exact, wildcard...) {
		check(d)
		check("x." + d)
		if i := strings.IndexByte(d, '.'); i >= 0 {
			check(d[i+1:])
		}
	}
	for i := 0; i < 50000; i++ {
		check(randomDomain(r, 6))
	}
	t.Logf("matched=%d false_positives=%d", matched, falsePositives)
	require.NotZero(t, matched)
	require.Less(t, falsePositives, 20)
}

// FuzzDomainExists checks that the engine never panics and never misses a
// domain the naive model blocks.
// Run via: go test -run ^$ -fuzz=FuzzDomainExists -fuzztime=60s ./domainxor
func FuzzDomainExists(f *testing.F) {
	r := rand.New(rand.NewSource(7))
	exact, wildcard, psl := paritySets(r)
	c, err := Compile(context.Background(), CompileInput{
		Exact:          exact,
		Wildcard:       wildcard,
		PublicSuffixes: SuffixList(psl),
	})
	if err != nil {
		f.Fatalf("failed to compile baseline: %v", err)
	}
	naive := NewNaiveDomainSet(exact, wildcard, psl)

	seeds := []string{
		"example.com",
		"a.tracker.co.uk",
		"co.uk",
		"..com",
		".",
		"a..b.com",
		strings.Repeat("a.", 120) + "com",
		string([]byte{0x7f, 'a', '.', 'c', 'o', 'm'}),
	}
	seeds = append(seeds, exact...)
	seeds = append(seeds, wildcard...)
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		if len(s) > 512 {
			s = s[:512]
		}
		got := c.Engine.DomainExists(s)
		c.Engine.Explain(s, func(Match) bool { return true })
		want, err := naive.Find(s)
		if err != nil {
			return
		}
		if want && !got {
			t.Fatalf("false negative for %q", s)
		}
	})
}
