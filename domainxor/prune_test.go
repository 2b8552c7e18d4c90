package domainxor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetsPruned(t *testing.T) {
	psl := toSet([]string{"com", "uk", "co.uk", "s3.amazonaws.com"})
	sets := Sets{
		Exact: []string{
			"a.example.com",
			"example.com",
			"other.com",
			"x.s3.amazonaws.com",
			"b.example.co.uk",
		},
		Wildcard: []string{
			"example.com",
			"ads.example.com",
			"amazonaws.com",
			"bucket.s3.amazonaws.com",
			"example.co.uk",
		},
	}
	p := sets.Pruned(psl)
	require.Equal(t, []string{"other.com", "x.s3.amazonaws.com"}, p.Exact)
	require.Equal(t, []string{"example.com", "amazonaws.com", "bucket.s3.amazonaws.com", "example.co.uk"}, p.Wildcard)
}

func TestSetsPruned_SameAnswers(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	exact, wildcard, psl := paritySets(r)
	full := NewNaiveDomainSet(exact, wildcard, psl)
	p := Sets{Exact: exact, Wildcard: wildcard}.Pruned(psl)
	require.LessOrEqual(t, len(p.Exact)+len(p.Wildcard), len(exact)+len(wildcard))
	pruned := NewNaiveDomainSet(p.Exact, p.Wildcard, psl)

	for i := 0; i < 50000; i++ {
		d := randomDomain(r, 6)
		want, err := full.Find(d)
		require.NoError(t, err)
		got, err := pruned.Find(d)
		require.NoError(t, err)
		require.Equal(t, want, got, d)
	}
}
