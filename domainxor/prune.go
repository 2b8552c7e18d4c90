package domainxor

// Pruned returns sets without entries already covered by a wildcard base.
// A wildcard base b covers a domain d ending in "."+b unless a public
// suffix sits between them: the engine never checks candidates at or to
// the right of the public suffix of a query. An exact domain is covered
// only if it is not itself a public suffix; a wildcard base covers itself.
// Lookup results are unchanged.
func (s Sets) Pruned(psl map[string]struct{}) Sets {
	wildcard := toSet(s.Wildcard)
	out := Sets{Rejected: s.Rejected}
	for _, d := range s.Exact {
		if _, public := psl[d]; public {
			out.Exact = append(out.Exact, d)
			continue
		}
		if _, has := wildcard[d]; has || coveredByWildcard(d, wildcard, psl) {
			continue
		}
		out.Exact = append(out.Exact, d)
	}
	for _, d := range s.Wildcard {
		if !coveredByWildcard(d, wildcard, psl) {
			out.Wildcard = append(out.Wildcard, d)
		}
	}
	return out
}

// coveredByWildcard walks the proper label suffixes of d from the longest
// and stops at the first public suffix.
func coveredByWildcard(d string, wildcard, psl map[string]struct{}) bool {
	for i := 0; i < len(d); i++ {
		if d[i] != '.' {
			continue
		}
		suffix := d[i+1:]
		if _, public := psl[suffix]; public {
			return false
		}
		if _, has := wildcard[suffix]; has {
			return true
		}
	}
	return false
}
