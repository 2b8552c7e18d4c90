package domainxor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Rejection reasons reported in Sets.Rejected.
const (
	RejectEmpty          = "empty"
	RejectTooLong        = "too long"
	RejectBadChars       = "invalid characters"
	RejectEmptyLabel     = "empty label"
	RejectPublicWildcard = "wildcard of a public suffix"
)

// Rejected is an input rule Classify refused.
type Rejected struct {
	Rule   string
	Reason string
}

// Sets are the classified inputs of the two filters, deduplicated in
// first-seen order.
type Sets struct {
	Exact    []string
	Wildcard []string
	Rejected []Rejected
}

// Classify splits raw rules into exact domains and wildcard bases.
// A rule "*.example.com" blocks example.com and all of its subdomains and
// is stored as the base "example.com". Rules are lowercased and trimmed of
// whitespace and trailing dots. Wildcards whose base is itself a public
// suffix are refused. Only [a-z0-9-._] is accepted; IDNs must already be
// in Punycode.
func Classify(raw []string, psl map[string]struct{}) Sets {
	var sets Sets
	seenExact := make(map[string]struct{})
	seenWildcard := make(map[string]struct{})
	for _, rule := range raw {
		d := normalizeRule(rule)
		wildcard := false
		if strings.HasPrefix(d, "*.") {
			wildcard = true
			d = d[2:]
		}
		if reason := invalidDomain(d); reason != "" {
			sets.Rejected = append(sets.Rejected, Rejected{Rule: rule, Reason: reason})
			continue
		}
		if !wildcard {
			if _, has := seenExact[d]; !has {
				seenExact[d] = struct{}{}
				sets.Exact = append(sets.Exact, d)
			}
			continue
		}
		if _, has := psl[d]; has {
			sets.Rejected = append(sets.Rejected, Rejected{Rule: rule, Reason: RejectPublicWildcard})
			continue
		}
		if _, has := seenWildcard[d]; !has {
			seenWildcard[d] = struct{}{}
			sets.Wildcard = append(sets.Wildcard, d)
		}
	}
	return sets
}

func normalizeRule(rule string) string {
	d := strings.ToLower(strings.TrimSpace(rule))
	return strings.TrimRight(d, ".")
}

// invalidDomain returns the reason d is not a storable domain, or "".
func invalidDomain(d string) string {
	if d == "" {
		return RejectEmpty
	}
	if len(d) > MaxDomainLen {
		return RejectTooLong
	}
	if !isValidDomain(d) {
		return RejectBadChars
	}
	if d[0] == '.' || strings.Contains(d, "..") {
		return RejectEmptyLabel
	}
	return ""
}

// ASCII-only [a-z0-9-._] after lowercasing.
func isValidDomain(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_') {
			return false
		}
	}
	return true
}

// ParsePublicSuffixList reads the Public Suffix List format: one rule per
// line, "//" comments. Exception rules ("!www.ck") are skipped and
// wildcard rules ("*.ck") contribute their base ("ck").
func ParsePublicSuffixList(r io.Reader) (map[string]struct{}, error) {
	psl := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		// Rules end at the first whitespace.
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rule := strings.ToLower(strings.TrimRight(fields[0], "."))
		if strings.HasPrefix(rule, "!") {
			continue
		}
		rule = strings.TrimPrefix(rule, "*.")
		if rule == "" || rule == "*" {
			continue
		}
		psl[rule] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read public suffix list: %w", err)
	}
	return psl, nil
}

// SuffixList returns the entries of psl in no particular order.
func SuffixList(psl map[string]struct{}) []string {
	out := make([]string, 0, len(psl))
	for s := range psl {
		out = append(out, s)
	}
	return out
}
