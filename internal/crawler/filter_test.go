package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRegexFilter(t *testing.T) {
	t.Parallel()

	filter, err := NewRegexFilter(`\.jpg$`)
	require.NoError(t, err)

	require.True(t, filter.Ignore(mustParse(t, "http://x.com/a.jpg")))
	require.False(t, filter.Ignore(mustParse(t, "http://x.com/a.png")))
}

func TestRegexFilterMalformedPattern(t *testing.T) {
	t.Parallel()

	_, err := NewRegexFilter("[unclosed")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "filters.ignore", cfgErr.Field)
}

func TestDomainFilter(t *testing.T) {
	t.Parallel()

	filter, err := NewDomainFilter([]string{"google.com"})
	require.NoError(t, err)

	require.False(t, filter.Ignore(mustParse(t, "http://google.com/x")))
	require.False(t, filter.Ignore(mustParse(t, "http://www.google.com")))
	require.True(t, filter.Ignore(mustParse(t, "http://bing.com")))
}

func TestDomainFilterStripsConfiguredWWW(t *testing.T) {
	t.Parallel()

	filter, err := NewDomainFilter([]string{"www.google.com"})
	require.NoError(t, err)

	require.False(t, filter.Ignore(mustParse(t, "http://google.com/x")))
}

func TestDomainFilterNoDomain(t *testing.T) {
	t.Parallel()

	filter, err := NewDomainFilter([]string{"google.com"})
	require.NoError(t, err)

	// A URL without a host is always excluded by an active domain filter.
	require.True(t, filter.Ignore(mustParse(t, "mailto:someone@google.com")))
}

func TestDomainFilterEmptyConfig(t *testing.T) {
	t.Parallel()

	_, err := NewDomainFilter(nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewDomainFilter([]string{"  "})
	require.ErrorAs(t, err, &cfgErr)
}

func TestFilterChainAnyMatchIgnores(t *testing.T) {
	t.Parallel()

	jpg, err := NewRegexFilter(`\.jpg$`)
	require.NoError(t, err)
	domains, err := NewDomainFilter([]string{"x.com"})
	require.NoError(t, err)
	chain := FilterChain{jpg, domains}

	require.True(t, chain.Ignore(mustParse(t, "http://x.com/a.jpg")), "regex rule")
	require.True(t, chain.Ignore(mustParse(t, "http://y.com/a.png")), "domain rule")
	require.False(t, chain.Ignore(mustParse(t, "http://x.com/a.png")))
	require.False(t, FilterChain(nil).Ignore(mustParse(t, "http://anything.net")))
}

func TestConfigBuildFilters(t *testing.T) {
	t.Parallel()

	cfg := Config{
		IgnorePatterns: []string{`\.jpg$`, `/private/`},
		AllowedDomains: []string{"example.net"},
	}
	chain, err := cfg.BuildFilters()
	require.NoError(t, err)
	require.Len(t, chain, 3)

	cfg.IgnorePatterns = []string{"("}
	_, err = cfg.BuildFilters()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
