package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// Filter decides whether a URL must be excluded from the crawl.
type Filter interface {
	// Ignore returns true if the URL must not be visited.
	Ignore(u *url.URL) bool
}

// FilterChain combines filters with logical OR: a URL is ignored as soon as
// any filter in the chain ignores it. Filters are stateless once built.
type FilterChain []Filter

// Ignore implements Filter.
func (c FilterChain) Ignore(u *url.URL) bool {
	for _, f := range c {
		if f.Ignore(u) {
			return true
		}
	}
	return false
}

// RegexFilter is a deny rule: a URL whose string form matches the pattern is
// ignored.
type RegexFilter struct {
	re *regexp.Regexp
}

// NewRegexFilter compiles pattern into a deny filter.
func NewRegexFilter(pattern string) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ConfigError{Field: "filters.ignore", Err: err}
	}
	return &RegexFilter{re: re}, nil
}

// Ignore implements Filter.
func (f *RegexFilter) Ignore(u *url.URL) bool {
	return f.re.MatchString(u.String())
}

// DomainFilter is an allow rule: a URL is ignored unless its domain is in the
// configured set. Domains are compared with any leading "www." stripped on
// both sides; a URL without a domain is always ignored.
type DomainFilter struct {
	domains map[string]struct{}
}

// NewDomainFilter builds an allow filter from the configured domain list.
func NewDomainFilter(domains []string) (*DomainFilter, error) {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = normalizeDomain(d)
		if d == "" {
			return nil, &ConfigError{Field: "filters.domains", Reason: "empty domain"}
		}
		set[d] = struct{}{}
	}
	if len(set) == 0 {
		return nil, &ConfigError{Field: "filters.domains", Reason: "no domains given"}
	}
	return &DomainFilter{domains: set}, nil
}

// Ignore implements Filter.
func (f *DomainFilter) Ignore(u *url.URL) bool {
	host := normalizeDomain(u.Hostname())
	if host == "" {
		return true
	}
	_, allowed := f.domains[host]
	return !allowed
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	return strings.TrimPrefix(d, "www.")
}
