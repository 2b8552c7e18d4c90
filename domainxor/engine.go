// Package domainxor answers "is this domain blocked?" from three compiled
// artifacts: an XOR filter of exact domains, an XOR filter of wildcard
// bases and a public suffix trie, plus an optional shadow whitelist of
// known false positives.
//
// The package also compiles those artifacts from domain lists, writes and
// loads them as a directory bundle, and provides the naive reference model
// used to cross-check the engine.
package domainxor

import (
	"fmt"

	"github.com/starius/domainxor/domainhash"
	"github.com/starius/domainxor/psltrie"
	"github.com/starius/domainxor/shadowlist"
	"github.com/starius/domainxor/xorfilter"
)

// MaxDomainLen is the longest domain DomainExists will consider.
const MaxDomainLen = 253

// Artifacts holds the serialized artifacts. The engine borrows these
// buffers for its whole lifetime; they must not be modified.
type Artifacts struct {
	ExactXOR        []byte
	WildcardXOR     []byte
	PSLTrie         []byte
	ShadowWhitelist []byte
}

// Engine is an immutable view over loaded artifacts.
// It is safe for concurrent use.
type Engine struct {
	exact     *xorfilter.Filter
	wildcard  *xorfilter.Filter
	trie      *psltrie.Trie
	whitelist *shadowlist.List
}

// New validates the artifacts and wraps them without copying.
// ExactXOR, WildcardXOR and PSLTrie are required; a zero-length filter is
// valid and never matches. ShadowWhitelist may be nil.
func New(a Artifacts) (*Engine, error) {
	switch {
	case a.ExactXOR == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, ExactXORFile)
	case a.WildcardXOR == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, WildcardXORFile)
	case a.PSLTrie == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, PSLTrieFile)
	}

	exact, err := xorfilter.FromSerialized(a.ExactXOR)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ExactXORFile, err)
	}
	wildcard, err := xorfilter.FromSerialized(a.WildcardXOR)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", WildcardXORFile, err)
	}
	trie, err := psltrie.FromSerialized(a.PSLTrie)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PSLTrieFile, err)
	}
	whitelist, err := shadowlist.FromSerialized(a.ShadowWhitelist)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ShadowWhitelistFile, err)
	}

	return &Engine{
		exact:     exact,
		wildcard:  wildcard,
		trie:      trie,
		whitelist: whitelist,
	}, nil
}

// WithWhitelist returns an engine sharing e's filters and trie but using
// the given whitelist.
func (e *Engine) WithWhitelist(l *shadowlist.List) *Engine {
	e2 := *e
	e2.whitelist = l
	return &e2
}

// Artifacts returns the buffers the engine reads from.
func (e *Engine) Artifacts() Artifacts {
	return Artifacts{
		ExactXOR:        e.exact.Serialize(),
		WildcardXOR:     e.wildcard.Serialize(),
		PSLTrie:         e.trie.Serialize(),
		ShadowWhitelist: e.whitelist.Serialize(),
	}
}

// DomainExists reports whether domain is blocked. The domain must already
// be normalized: lowercase ASCII without a trailing dot. Empty domains,
// domains longer than MaxDomainLen and domains with more dots than the
// label buffer holds are never blocked.
//
// A filter match whose h1 is in the shadow whitelist is ignored, and the
// remaining checks still run.
func (e *Engine) DomainExists(domain string) bool {
	if len(domain) == 0 || len(domain) > MaxDomainLen {
		return false
	}

	if e.check(e.exact, domain, 0) {
		return true
	}

	var dots [psltrie.MaxLabels]int32
	n, ok := scanDots(domain, &dots)
	if !ok {
		return false
	}
	boundary := e.suffixBoundary(domain, dots[:n])

	// Candidates start at 0 and after each dot, left of the public suffix.
	start := 0
	for i := 0; start < boundary; i++ {
		if e.check(e.wildcard, domain, start) {
			return true
		}
		if i == n {
			break
		}
		start = int(dots[i]) + 1
	}
	return false
}

func scanDots(domain string, dots *[psltrie.MaxLabels]int32) (int, bool) {
	n := 0
	for i := 0; i < len(domain); i++ {
		if domain[i] != '.' {
			continue
		}
		if n == len(dots) {
			return 0, false
		}
		dots[n] = int32(i)
		n++
	}
	return n, true
}

// suffixBoundary returns where the public suffix starts, or len(domain)
// when no suffix is known, so that every label is a wildcard candidate.
func (e *Engine) suffixBoundary(domain string, dots []int32) int {
	boundary := e.trie.SuffixStart(domain, dots)
	if boundary < 0 {
		return len(domain)
	}
	return boundary
}

func (e *Engine) check(f *xorfilter.Filter, domain string, start int) bool {
	h1, h2 := domainhash.HashSpan(domain, start, len(domain))
	if !f.Probe(h1, h2) {
		return false
	}
	return !e.whitelist.Contains(h1)
}

// MatchKind names the filter a match came from.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchWildcard
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchWildcard:
		return "wildcard"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is a filter check that matched while evaluating a domain.
type Match struct {
	Kind MatchKind

	// Candidate is the suffix of the domain that was probed.
	Candidate string
	Start     int

	H1, H2 uint32

	// Rescued is true when H1 is in the shadow whitelist.
	Rescued bool
}

// Explain calls fn for every filter check that matches domain, in the
// order DomainExists performs them, ignoring the early return. Rescued
// matches are reported too. Iteration stops when fn returns false.
func (e *Engine) Explain(domain string, fn func(Match) bool) {
	if len(domain) == 0 || len(domain) > MaxDomainLen {
		return
	}
	probe := func(kind MatchKind, f *xorfilter.Filter, start int) bool {
		h1, h2 := domainhash.HashSpan(domain, start, len(domain))
		if !f.Probe(h1, h2) {
			return true
		}
		return fn(Match{
			Kind:      kind,
			Candidate: domain[start:],
			Start:     start,
			H1:        h1,
			H2:        h2,
			Rescued:   e.whitelist.Contains(h1),
		})
	}

	if !probe(MatchExact, e.exact, 0) {
		return
	}

	var dots [psltrie.MaxLabels]int32
	n, ok := scanDots(domain, &dots)
	if !ok {
		return
	}
	boundary := e.suffixBoundary(domain, dots[:n])
	start := 0
	for i := 0; start < boundary; i++ {
		if !probe(MatchWildcard, e.wildcard, start) {
			return
		}
		if i == n {
			break
		}
		start = int(dots[i]) + 1
	}
}

// PublicSuffix returns the longest public suffix of domain, or "".
func (e *Engine) PublicSuffix(domain string) string {
	return e.trie.PublicSuffix(domain)
}

// Stats describes the loaded artifacts.
type Stats struct {
	ExactCapacity     int
	WildcardCapacity  int
	TrieNodes         int
	PublicSuffixes    int
	WhitelistHashes   int
	TotalBytes        int
	FalsePositiveRate float64
}

// Stats returns sizes of the loaded artifacts.
func (e *Engine) Stats() Stats {
	return Stats{
		ExactCapacity:     e.exact.Capacity(),
		WildcardCapacity:  e.wildcard.Capacity(),
		TrieNodes:         e.trie.Nodes(),
		PublicSuffixes:    e.trie.Suffixes(),
		WhitelistHashes:   e.whitelist.Len(),
		TotalBytes:        e.exact.Allocated() + e.wildcard.Allocated() + e.trie.Allocated() + e.whitelist.Allocated(),
		FalsePositiveRate: xorfilter.FalsePositiveRate(),
	}
}

func (e *Engine) String() string {
	return fmt.Sprintf("DomainXOR{exact=%v, wildcard=%v, trie=%v, whitelist=%v}",
		e.exact, e.wildcard, e.trie, e.whitelist)
}
