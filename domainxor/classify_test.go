package domainxor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePSL = `// ===BEGIN ICANN DOMAINS===
com
net
uk
co.uk

// wildcard and exception rules
*.ck
!www.ck
GOV.UK
github.io  // trailing comment
`

func TestParsePublicSuffixList(t *testing.T) {
	psl, err := ParsePublicSuffixList(strings.NewReader(samplePSL))
	require.NoError(t, err)
	want := map[string]struct{}{
		"com": {}, "net": {}, "uk": {}, "co.uk": {}, "ck": {}, "gov.uk": {}, "github.io": {},
	}
	require.Equal(t, want, psl)
	require.ElementsMatch(t, []string{"com", "net", "uk", "co.uk", "ck", "gov.uk", "github.io"}, SuffixList(psl))
}

func TestClassify(t *testing.T) {
	psl, err := ParsePublicSuffixList(strings.NewReader(samplePSL))
	require.NoError(t, err)

	tooLong := strings.Repeat("a", 250) + ".com"
	raw := []string{
		"ads.example.com",
		"  ADS.Example.COM.. ",
		"*.tracker.net",
		"*.Tracker.Net.",
		"*.co.uk",
		"*.example.co.uk",
		"co.uk",
		"*.com",
		"",
		"bad domain.com",
		"ümlaut.de",
		"a..b.com",
		".lead.com",
		tooLong,
		"under_score.example.com",
		"-start.com",
	}
	sets := Classify(raw, psl)
	require.Equal(t, []string{"ads.example.com", "co.uk", "under_score.example.com", "-start.com"}, sets.Exact)
	require.Equal(t, []string{"tracker.net", "example.co.uk"}, sets.Wildcard)

	reasons := make(map[string]string)
	for _, r := range sets.Rejected {
		reasons[r.Rule] = r.Reason
	}
	require.Equal(t, map[string]string{
		"*.co.uk":        RejectPublicWildcard,
		"*.com":          RejectPublicWildcard,
		"":               RejectEmpty,
		"bad domain.com": RejectBadChars,
		"ümlaut.de":      RejectBadChars,
		"a..b.com":       RejectEmptyLabel,
		".lead.com":      RejectEmptyLabel,
		tooLong:          RejectTooLong,
	}, reasons)
}

func TestClassify_ThenEngine(t *testing.T) {
	psl, err := ParsePublicSuffixList(strings.NewReader(samplePSL))
	require.NoError(t, err)
	sets := Classify([]string{"*.example.co.uk", "*.co.uk", "ads.example.com"}, psl)
	e := compileEngine(t, sets.Exact, sets.Wildcard, SuffixList(psl))
	require.True(t, e.DomainExists("a.example.co.uk"))
	require.True(t, e.DomainExists("example.co.uk"))
	require.False(t, e.DomainExists("co.uk"))
	require.False(t, e.DomainExists("other.co.uk"))
	require.True(t, e.DomainExists("ads.example.com"))
}
