package domainxor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ListStats counts what ParseBlocklist did with each line.
type ListStats struct {
	Lines      int
	Valid      int
	Wildcards  int
	Comments   int
	Cosmetic   int
	Exceptions int
	URLs       int
	IPs        int
	Invalid    int
}

// ParseBlocklist reads a blocklist in hosts, plain-domain or Adblock
// network-rule syntax and returns rules in the form Classify expects.
//
// A bare domain blocks its subdomains too, so "example.com" and
// "||example.com^" both become "*.example.com". IP addresses are kept as
// exact rules. Exceptions ("@@"), cosmetic rules and URL patterns are
// skipped. Comma-separated lines hold several rules.
func ParseBlocklist(r io.Reader) ([]string, ListStats, error) {
	var stats ListStats
	var rules []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		d, ok := parseRule(raw, &stats)
		if !ok {
			return
		}
		stats.Valid++
		if _, has := seen[d]; has {
			return
		}
		seen[d] = struct{}{}
		rules = append(rules, d)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		stats.Lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			stats.Comments++
			continue
		}
		if fields := strings.Fields(line); len(fields) > 1 && isLoopbackAddr(fields[0]) {
			add(fields[1])
			continue
		}
		if strings.IndexByte(line, ',') >= 0 {
			for _, part := range strings.Split(line, ",") {
				add(strings.TrimSpace(part))
			}
			continue
		}
		add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read blocklist: %w", err)
	}
	return rules, stats, nil
}

func isLoopbackAddr(s string) bool {
	return s == "127.0.0.1" || s == "0.0.0.0" || s == "::1"
}

func parseRule(raw string, stats *ListStats) (string, bool) {
	d := strings.TrimSpace(raw)
	switch {
	case d == "":
		return "", false
	case strings.HasPrefix(d, "@@"):
		stats.Exceptions++
		return "", false
	case d[0] == '!' || d[0] == '#':
		return "", false
	case strings.Contains(d, "##") || strings.Contains(d, "#@#"):
		stats.Cosmetic++
		return "", false
	}

	if strings.HasPrefix(d, "||") {
		d = "*." + d[2:]
	}
	d = strings.TrimPrefix(d, "|")
	if i := strings.IndexAny(d, "^$/"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, "|")
	d = strings.ToLower(d)

	if strings.ContainsAny(d, " :/\\?=%&{}<>[]") {
		stats.URLs++
		return "", false
	}

	base, isWildcard := strings.CutPrefix(d, "*.")
	if base != "" && strings.Trim(base, "0123456789.") == "" {
		stats.IPs++
		return base, true
	}
	if !strings.Contains(base, ".") {
		stats.Invalid++
		return "", false
	}
	stats.Wildcards++
	if !isWildcard {
		d = "*." + d
	}
	return d, true
}

// ReadSample reads a popularity list such as the Tranco CSV ("1,google.com")
// or one domain per line, and returns normalized domains in file order.
func ReadSample(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = line[i+1:]
		}
		if d := normalizeRule(line); d != "" {
			out = append(out, d)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return out, nil
}
