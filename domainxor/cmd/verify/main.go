package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/starius/domainxor/domainxor"
)

func extractDomain(s string) (string, error) {
	// Cut by comma: "<url>,<count>"
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty URL field")
	}
	raw := s
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	h := u.Hostname()
	h = strings.ToLower(strings.TrimRight(h, "."))
	if h == "" {
		return "", fmt.Errorf("empty host in url")
	}
	return h, nil
}

type counter struct {
	tests, mismatches, falsePositives, rescued int
}

// rescued reports whether a whitelisted match explains why d is allowed.
func rescued(e *domainxor.Engine, d string) bool {
	found := false
	e.Explain(d, func(m domainxor.Match) bool {
		found = m.Rescued
		return !found
	})
	return found
}

func main() {
	dir := flag.String("dir", "bins", "artifact directory written by build")
	listsFlag := flag.String("lists", "", "comma-separated blocklist files the artifacts were built from")
	pslPath := flag.String("psl", "", "path to public_suffix_list.dat")
	textPath := flag.String("text", "", "optional text file with 'url,count' lines")
	flag.Parse()

	if *listsFlag == "" || *pslPath == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -dir=bins -lists=a.txt,b.txt -psl=public_suffix_list.dat [-text=text.csv]")
		os.Exit(2)
	}

	engine, err := domainxor.Open(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open artifacts:", err)
		os.Exit(1)
	}
	fmt.Println(engine.String())

	pf, err := os.Open(*pslPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open psl:", err)
		os.Exit(1)
	}
	psl, err := domainxor.ParsePublicSuffixList(pf)
	pf.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse psl:", err)
		os.Exit(1)
	}

	var rules []string
	for _, p := range strings.Split(*listsFlag, ",") {
		f, err := os.Open(strings.TrimSpace(p))
		if err != nil {
			fmt.Fprintln(os.Stderr, "open list:", err)
			os.Exit(1)
		}
		list, _, err := domainxor.ParseBlocklist(f)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read list:", err)
			os.Exit(1)
		}
		rules = append(rules, list...)
	}
	sets := domainxor.Classify(rules, psl)
	naive := domainxor.NewNaiveDomainSet(sets.Exact, sets.Wildcard, psl)

	// Every pattern must be blocked unless a forced list opened it.
	forced := domainxor.DefaultForcedLists()
	var blockFailures, blockRescued int
	for _, d := range append(append([]string(nil), sets.Exact...), sets.Wildcard...) {
		if !engine.DomainExists(d) {
			if rescued(engine, d) {
				blockRescued++
				continue
			}
			blockFailures++
			if blockFailures <= 20 {
				fmt.Fprintf(os.Stderr, "not blocked: %q\n", d)
			}
		}
	}
	if blocked := domainxor.StillBlocked(engine, forced); len(blocked) != 0 {
		fmt.Fprintf(os.Stderr, "critical domains blocked: %v\n", blocked)
	}

	// Patterns and derivatives: add subdomain, remove subdomain, add
	// letter, remove letter (at the beginning in all cases). Engine-only
	// positives are counted as false positives, never as mismatches.
	labels := []string{"exact", "add_subdomain", "remove_subdomain", "add_letter", "remove_letter"}
	counters := make(map[string]*counter, len(labels))
	for _, l := range labels {
		counters[l] = &counter{}
	}
	check := func(label, dom string) {
		want, err := naive.Find(dom)
		if err != nil {
			return
		}
		c := counters[label]
		c.tests++
		got := engine.DomainExists(dom)
		switch {
		case want && !got && rescued(engine, dom):
			c.rescued++
		case want && !got:
			c.mismatches++
			fmt.Fprintf(os.Stderr, "mismatch %s: domain=%q fast=%v naive=%v\n", label, dom, got, want)
		case got && !want:
			c.falsePositives++
		}
	}
	for _, p := range append(append([]string(nil), sets.Exact...), sets.Wildcard...) {
		check("exact", p)
		if d := "x." + p; len(d) <= domainxor.MaxDomainLen {
			check("add_subdomain", d)
		}
		if i := strings.IndexByte(p, '.'); i >= 0 && i+1 < len(p) {
			check("remove_subdomain", p[i+1:])
		}
		if d := "a" + p; len(d) <= domainxor.MaxDomainLen {
			check("add_letter", d)
		}
		if len(p) > 1 {
			check("remove_letter", p[1:])
		}
	}

	total, valid, unique, parseErrors := 0, 0, 0, 0
	fastMatched, naiveMatched, discrepancies := 0, 0, 0
	var fastTotal, naiveTotal time.Duration
	var fastN, naiveN int
	if *textPath != "" {
		f, err := os.Open(*textPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open text:", err)
			os.Exit(1)
		}
		defer f.Close()
		seen := make(map[uint64]struct{})
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			total++
			dom, err := extractDomain(line)
			if err != nil {
				parseErrors++
				continue
			}
			valid++
			key := xxh3.HashString(dom)
			if _, has := seen[key]; has {
				continue
			}
			seen[key] = struct{}{}
			unique++

			t0 := time.Now()
			gotFast := engine.DomainExists(dom)
			fastTotal += time.Since(t0)
			fastN++

			t1 := time.Now()
			gotNaive, errNaive := naive.Find(dom)
			naiveTotal += time.Since(t1)
			naiveN++

			if gotFast {
				fastMatched++
			}
			if errNaive == nil && gotNaive {
				naiveMatched++
			}
			if errNaive == nil && gotFast != gotNaive {
				discrepancies++
				if gotNaive {
					fmt.Fprintf(os.Stderr, "mismatch on line %d: domain=%q fast=%v naive=%v\n", total, dom, gotFast, gotNaive)
				}
			}
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "read text:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Block tests: %d patterns, %d not blocked, %d rescued\n", len(sets.Exact)+len(sets.Wildcard), blockFailures, blockRescued)
	fmt.Printf("Pattern checks by label:\n")
	failed := blockFailures > 0
	for _, l := range labels {
		c := counters[l]
		fmt.Printf("  %-18s tests=%d mismatches=%d false_positives=%d rescued=%d\n", l+":", c.tests, c.mismatches, c.falsePositives, c.rescued)
		if c.mismatches > 0 {
			failed = true
		}
	}
	if *textPath != "" {
		fmt.Printf("Inputs: total=%d, valid=%d, unique=%d, parse_errors=%d\n", total, valid, unique, parseErrors)
		fmt.Printf("Fast matches:  %d of %d\n", fastMatched, unique)
		fmt.Printf("Naive matches: %d of %d\n", naiveMatched, unique)
		fmt.Printf("Discrepancies: %d of %d\n", discrepancies, unique)
		if fastN > 0 {
			fmt.Printf("Avg find latency (fast):  %.0f ns\n", float64(fastTotal.Nanoseconds())/float64(fastN))
		}
		if naiveN > 0 {
			fmt.Printf("Avg find latency (naive): %.0f ns\n", float64(naiveTotal.Nanoseconds())/float64(naiveN))
		}
	}
	if failed {
		os.Exit(1)
	}
}
