package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/starius/domainxor/domainxor"
)

// makeGroup returns N subdomains of base like x0.base, x1.base, ...
func makeGroup(base string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("x%d.%s", i, base))
	}
	return out
}

func main() {
	base := flag.String("base", "tracker.example", "base of the generated wildcard group")
	extra := flag.String("extra", "test", "unrelated public suffix to hunt false positives under")
	n := flag.Int("n", 5000, "number of wildcard entries to generate under base")
	maxTries := flag.Int("tries", 2000000, "max candidates to try")
	seed := flag.Int64("seed", 0, "random seed (0 means time-based)")
	flag.Parse()

	wildcard := makeGroup(*base, *n)
	exact := makeGroup("exact."+*base, *n)
	psl := map[string]struct{}{*extra: {}, "example": {}}
	suffixes := domainxor.SuffixList(psl)

	c, err := domainxor.Compile(context.Background(), domainxor.CompileInput{
		Exact:          exact,
		Wildcard:       wildcard,
		PublicSuffixes: suffixes,
		SkipWhitelist:  true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}
	fmt.Println(c.Engine.String())
	naive := domainxor.NewNaiveDomainSet(exact, wildcard, psl)

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(s))
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	genLabel := func(min, max int) string {
		ln := rnd.Intn(max-min+1) + min
		var b strings.Builder
		b.Grow(ln)
		for i := 0; i < ln; i++ {
			b.WriteByte(letters[rnd.Intn(len(letters))])
		}
		return b.String()
	}

	var found string
	for i := 0; i < *maxTries; i++ {
		query := fmt.Sprintf("%s.%s.%s", genLabel(1, 4), genLabel(3, 8), *extra)
		ref, err := naive.Find(query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "naive find error for %q: %v\n", query, err)
			os.Exit(1)
		}
		if ref {
			continue
		}
		if c.Engine.DomainExists(query) {
			fmt.Printf("False positive after %d tries (seed=%d): %q\n", i+1, s, query)
			c.Engine.Explain(query, func(m domainxor.Match) bool {
				fmt.Printf("  %s match on %q h1=0x%08x h2=0x%08x\n", m.Kind, m.Candidate, m.H1, m.H2)
				return true
			})
			found = query
			break
		}
		if (i+1)%100000 == 0 {
			fmt.Printf("... tried %d, no false positive yet\n", i+1)
		}
	}
	if found == "" {
		fmt.Printf("No false positive observed in %d tries (seed=%d)\n", *maxTries, s)
		os.Exit(3)
	}

	// Feed the false positive back as a sample and check it is rescued.
	whitelist, report, err := domainxor.BuildWhitelist(context.Background(), c.Engine, domainxor.RescueInput{
		Exact:    exact,
		Wildcard: wildcard,
		Sample:   []string{found},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "whitelist error:", err)
		os.Exit(1)
	}
	fmt.Printf("%v collisions=%d unrescuable=%d\n", whitelist, report.Collisions, report.Unrescuable)
	e := c.Engine.WithWhitelist(whitelist)
	if e.DomainExists(found) {
		fmt.Printf("Still blocked after rescue: %q\n", found)
		os.Exit(4)
	}
	fmt.Printf("Rescued: %q no longer matches\n", found)
}
