package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/starius/domainxor/domainxor"
	"github.com/starius/domainxor/xorfilter"
)

func readRules(paths []string) ([]string, error) {
	var rules []string
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		list, stats, err := domainxor.ParseBlocklist(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		fmt.Printf("List %s: lines=%d valid=%d wildcards=%d ips=%d comments=%d cosmetic=%d exceptions=%d urls=%d invalid=%d\n",
			p, stats.Lines, stats.Valid, stats.Wildcards, stats.IPs, stats.Comments, stats.Cosmetic, stats.Exceptions, stats.URLs, stats.Invalid)
		rules = append(rules, list...)
	}
	return rules, nil
}

func readDomains(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domainxor.ReadSample(f)
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bloomBytes is the size of a Bloom filter with the same false positive rate.
func bloomBytes(n int) uint {
	if n == 0 {
		return 0
	}
	m, _ := bloom.EstimateParameters(uint(n), xorfilter.FalsePositiveRate())
	return (m + 7) / 8
}

func printFilter(name string, f *xorfilter.Filter) {
	fmt.Printf("%s: %v\n", name, f)
	if f.Keys() == 0 {
		return
	}
	retries := f.Attempts() - 1
	if retries > 0 {
		fmt.Printf("  construction succeeded after %d retries\n", retries)
	}
	fmt.Printf("  bloom filter with the same FPR: %d bytes\n", bloomBytes(f.Keys()))
}

func main() {
	listsFlag := flag.String("lists", "", "comma-separated blocklist files (hosts, domains or adblock syntax)")
	pslPath := flag.String("psl", "", "path to public_suffix_list.dat")
	samplePath := flag.String("sample", "", "optional popularity list (e.g. Tranco CSV) scanned for false positives")
	allowFlag := flag.String("allow", "", "comma-separated extra allow lists, forced open like the recommended list")
	noDefaultAllow := flag.Bool("no-default-allow", false, "do not force open the built-in critical and recommended domains")
	noWhitelist := flag.Bool("no-whitelist", false, "skip the shadow whitelist")
	prune := flag.Bool("prune", true, "drop entries already covered by a wildcard")
	outDir := flag.String("out", "bins", "output directory")
	flag.Parse()

	lists := splitPaths(*listsFlag)
	if len(lists) == 0 || *pslPath == "" {
		fmt.Fprintln(os.Stderr, "usage: build -lists=a.txt,b.txt -psl=public_suffix_list.dat [-sample=tranco.csv] [-out=bins]")
		os.Exit(2)
	}

	rules, err := readRules(lists)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read lists:", err)
		os.Exit(1)
	}

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

	sets := domainxor.Classify(rules, psl)
	fmt.Printf("Classified %d rules: exact=%d wildcard=%d rejected=%d\n",
		len(rules), len(sets.Exact), len(sets.Wildcard), len(sets.Rejected))
	for i, r := range sets.Rejected {
		if i == 20 {
			fmt.Fprintf(os.Stderr, "  ... %d more rejected\n", len(sets.Rejected)-i)
			break
		}
		fmt.Fprintf(os.Stderr, "  rejected %q: %s\n", r.Rule, r.Reason)
	}
	if *prune {
		before := len(sets.Exact) + len(sets.Wildcard)
		sets = sets.Pruned(psl)
		fmt.Printf("Pruned %d covered entries: exact=%d wildcard=%d\n",
			before-len(sets.Exact)-len(sets.Wildcard), len(sets.Exact), len(sets.Wildcard))
	}

	var forced []domainxor.ForcedList
	if !*noDefaultAllow {
		forced = domainxor.DefaultForcedLists()
	}
	for _, p := range splitPaths(*allowFlag) {
		domains, err := readDomains(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read allow list:", err)
			os.Exit(1)
		}
		forced = append(forced, domainxor.ForcedList{Name: p, Domains: domains})
	}

	var sample []string
	if *samplePath != "" {
		sample, err = readDomains(*samplePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read sample:", err)
			os.Exit(1)
		}
	}

	c, err := domainxor.Compile(context.Background(), domainxor.CompileInput{
		Exact:          sets.Exact,
		Wildcard:       sets.Wildcard,
		PublicSuffixes: domainxor.SuffixList(psl),
		Forced:         forced,
		Sample:         sample,
		SkipWhitelist:  *noWhitelist,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		os.Exit(1)
	}

	printFilter("Exact", c.Exact)
	printFilter("Wildcard", c.Wildcard)
	fmt.Printf("Trie: %v\n", c.Trie)
	fmt.Printf("Filters and trie built in %v\n", c.FiltersTime)

	r := c.Rescue
	fmt.Printf("Whitelist: %v built in %v\n", c.Whitelist, c.WhitelistTime)
	fmt.Printf("  forced=%d collisions=%d unrescuable=%d sample_checked=%d\n",
		r.Forced, r.Collisions, r.Unrescuable, r.SampleChecked)
	for _, row := range r.Rescues {
		fmt.Printf("  %-40s %-9s %-40s %s\n", row.Domain, row.Kind, row.Candidate, row.Reason)
	}

	if err := domainxor.WriteDir(*outDir, c.Artifacts); err != nil {
		fmt.Fprintln(os.Stderr, "write artifacts:", err)
		os.Exit(1)
	}
	s := c.Engine.Stats()
	fmt.Printf("Wrote %d bytes to %s (theoretical FPR per check %.5f%%)\n", s.TotalBytes, *outDir, s.FalsePositiveRate*100)
}
