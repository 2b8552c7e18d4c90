package domainxor

import (
	"context"
	"slices"
	"strings"

	"github.com/starius/domainxor/domainhash"
	"github.com/starius/domainxor/shadowlist"
)

// CriticalDomains must never be blocked. A build that still blocks one
// of them after rescue fails.
var CriticalDomains = []string{
	// RFC 2606 reserved names.
	"example.com",
	"example.net",
	"example.org",
	"test",
	"invalid",
	"localhost",

	// Local infrastructure.
	"local",
	"localdomain",
	"router",
	"home",

	// Connectivity checks.
	"captive.apple.com",
	"connectivitycheck.gstatic.com",
	"detectportal.firefox.com",
	"msftconnecttest.com",
	"networkcheck.kde.org",
}

// RecommendedDomains are popular domains whose blocking breaks most users.
var RecommendedDomains = []string{
	"google.com",
	"apple.com",
	"microsoft.com",
	"amazon.com",
	"android.com",
	"windows.com",
	"googleusercontent.com",
	"youtube.com",
	"netflix.com",
	"github.com",
	"wikipedia.org",
	"linkedin.com",
	"reddit.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"twitch.tv",
	"spotify.com",
	"hulu.com",
	"disneyplus.com",
	"cloudflare.com",
	"aws.amazon.com",
	"fastly.net",
	"akamai.com",
	"archive.org",
	"zoom.us",
	"dropbox.com",
	"paypal.com",
	"stackoverflow.com",
	"duckduckgo.com",
	"proton.me",
}

// ForcedList is a named allow list. Every match of its domains is rescued,
// even when the match is a genuine blocklist entry.
type ForcedList struct {
	Name     string
	Domains  []string
	Critical bool
}

// DefaultForcedLists returns the built-in critical and recommended lists.
func DefaultForcedLists() []ForcedList {
	return []ForcedList{
		{Name: "Critical", Domains: CriticalDomains, Critical: true},
		{Name: "Recommended", Domains: RecommendedDomains},
	}
}

// RescueInput is what BuildWhitelist needs besides the engine.
type RescueInput struct {
	// Exact and Wildcard are the sets the filters were built from.
	Exact    []string
	Wildcard []string

	Forced []ForcedList

	// Sample is a list of popular domains, e.g. the Tranco top 1M,
	// scanned for statistical false positives.
	Sample []string
}

// Rescue is one whitelisted hash.
type Rescue struct {
	Domain    string
	Candidate string
	Kind      MatchKind
	H1        uint32
	Reason    string
}

// RescueReport summarizes BuildWhitelist.
type RescueReport struct {
	Rescues []Rescue

	Forced     int
	Collisions int

	// SampleChecked is the number of sample domains evaluated.
	SampleChecked int

	// Unrescuable counts false positives whose h1 equals the h1 of a
	// genuine entry; whitelisting them would unblock that entry.
	Unrescuable int
}

const collisionReason = "Collision (sample)"

// BuildWhitelist computes the shadow whitelist for e. Forced lists are
// processed first, in order; then every sample domain that matches a
// filter through a candidate absent from that filter's source set gets the
// candidate's h1 whitelisted. Entries containing "://" are skipped.
//
// The returned whitelist is not installed in e; see Engine.WithWhitelist.
func BuildWhitelist(ctx context.Context, e *Engine, in RescueInput) (*shadowlist.List, *RescueReport, error) {
	if e == nil {
		return nil, nil, ErrNilEngine
	}
	// Matches must be evaluated before any rescue.
	e = e.WithWhitelist(nil)

	exact := toSet(in.Exact)
	wildcard := toSet(in.Wildcard)
	genuine := make(map[uint32]struct{}, len(exact)+len(wildcard))
	for _, set := range []map[string]struct{}{exact, wildcard} {
		for d := range set {
			h1, _ := domainhash.Hash(d)
			genuine[h1] = struct{}{}
		}
	}

	report := &RescueReport{}
	rescued := make(map[uint32]struct{})
	var hashes []uint32
	rescue := func(domain string, m Match, reason string) {
		if _, has := rescued[m.H1]; has {
			return
		}
		rescued[m.H1] = struct{}{}
		hashes = append(hashes, m.H1)
		report.Rescues = append(report.Rescues, Rescue{
			Domain:    domain,
			Candidate: m.Candidate,
			Kind:      m.Kind,
			H1:        m.H1,
			Reason:    reason,
		})
	}

	for _, list := range in.Forced {
		reason := "Forced " + list.Name
		for _, raw := range list.Domains {
			domain, ok := rescueDomain(raw)
			if !ok {
				continue
			}
			before := len(hashes)
			e.Explain(domain, func(m Match) bool {
				rescue(domain, m, reason)
				return true
			})
			if len(hashes) > before {
				report.Forced++
			}
		}
	}

	for i, raw := range in.Sample {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		domain, ok := rescueDomain(raw)
		if !ok {
			continue
		}
		report.SampleChecked++
		e.Explain(domain, func(m Match) bool {
			if _, has := rescued[m.H1]; has {
				return true
			}
			source := exact
			if m.Kind == MatchWildcard {
				source = wildcard
			}
			if _, has := source[m.Candidate]; has {
				// Intentional block.
				return true
			}
			if _, has := genuine[m.H1]; has {
				report.Unrescuable++
				return true
			}
			rescue(domain, m, collisionReason)
			report.Collisions++
			return true
		})
	}

	slices.SortFunc(report.Rescues, func(a, b Rescue) int {
		af, bf := strings.HasPrefix(a.Reason, "Forced"), strings.HasPrefix(b.Reason, "Forced")
		switch {
		case af && !bf:
			return -1
		case !af && bf:
			return 1
		}
		return strings.Compare(a.Candidate, b.Candidate)
	})

	return shadowlist.Build(hashes), report, nil
}

func rescueDomain(raw string) (string, bool) {
	if strings.Contains(raw, "://") {
		return "", false
	}
	d := normalizeRule(raw)
	if invalidDomain(d) != "" {
		return "", false
	}
	return d, true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// StillBlocked returns the domains of the critical forced lists that e
// blocks.
func StillBlocked(e *Engine, forced []ForcedList) []string {
	var blocked []string
	for _, list := range forced {
		if !list.Critical {
			continue
		}
		for _, raw := range list.Domains {
			domain, ok := rescueDomain(raw)
			if ok && e.DomainExists(domain) {
				blocked = append(blocked, domain)
			}
		}
	}
	return blocked
}
