package domainxor

import (
	"fmt"
	"strings"

	"github.com/starius/domainxor/psltrie"
)

// NaiveDomainSet is a map-based model of Engine without false positives.
// It is used for testing and by the verify tool.
type NaiveDomainSet struct {
	exact    map[string]struct{}
	wildcard map[string]struct{}
	psl      map[string]struct{}
}

// NewNaiveDomainSet builds a naive set from classified inputs.
func NewNaiveDomainSet(exact, wildcard []string, psl map[string]struct{}) *NaiveDomainSet {
	return &NaiveDomainSet{
		exact:    toSet(exact),
		wildcard: toSet(wildcard),
		psl:      psl,
	}
}

// Find reports whether domain is blocked. It returns an error for inputs
// Engine does not define a result for: empty, too long, not normalized or
// with too many labels.
func (n *NaiveDomainSet) Find(domain string) (bool, error) {
	if domain == "" {
		return false, fmt.Errorf("empty domain")
	}
	if len(domain) > MaxDomainLen {
		return false, fmt.Errorf("domain too long: %d", len(domain))
	}
	if strings.HasSuffix(domain, ".") {
		return false, fmt.Errorf("trailing dot")
	}
	if !isValidDomain(domain) {
		return false, fmt.Errorf("invalid domain characters")
	}
	if _, ok := n.exact[domain]; ok {
		return true, nil
	}

	// Candidate starts: 0 and the byte after every dot.
	starts := []int{0}
	for i := 0; i < len(domain); i++ {
		if domain[i] == '.' {
			starts = append(starts, i+1)
		}
	}
	if len(starts)-1 > psltrie.MaxLabels {
		return false, fmt.Errorf("too many labels: %d", len(starts))
	}

	boundary := len(domain)
	for _, s := range starts {
		if _, ok := n.psl[domain[s:]]; ok {
			boundary = s
			break
		}
	}
	for _, s := range starts {
		if s >= boundary {
			break
		}
		if _, ok := n.wildcard[domain[s:]]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of exact and wildcard entries.
func (n *NaiveDomainSet) Len() int {
	return len(n.exact) + len(n.wildcard)
}
