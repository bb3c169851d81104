package crawler

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"
)

// RetryPolicy selects how the workload merges retried URLs with fresh
// frontier work.
type RetryPolicy string

// Supported retry policies.
const (
	// RetryNo never re-queues a failed URL.
	RetryNo RetryPolicy = "no"
	// RetryFirst prefers cooled-down retries over fresh frontier work.
	RetryFirst RetryPolicy = "first"
	// RetryLast prefers fresh frontier work and falls back to retries only
	// when the frontier is empty.
	RetryLast RetryPolicy = "last"
)

// ParseRetryPolicy maps a configuration string onto a RetryPolicy.
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no", "off", "":
		return RetryNo, nil
	case "first":
		return RetryFirst, nil
	case "last":
		return RetryLast, nil
	default:
		return "", &ConfigError{Field: "retry.policy", Reason: "must be one of no, first, last"}
	}
}

// Config holds the settings for one crawl session. It is decoupled from
// Viper so the engine can be constructed and tested independently, and it is
// immutable for the duration of the crawl.
type Config struct {
	Concurrency     int
	Limit           int // maximum collected artifacts, 0 means unlimited
	RetryPolicy     RetryPolicy
	RetryThreshold  time.Duration
	RetryCap        int
	UseRobots       bool
	RobotName       string
	UserAgent       string
	PageLoadTimeout time.Duration
	ExtractScript   string
	IgnorePatterns  []string
	AllowedDomains  []string
	Seeds           []string
}

// BuildFilters compiles the configured ignore patterns and domain allow-list
// into a filter chain. A malformed pattern is a ConfigError; the crawl never
// starts with a broken filter.
func (c Config) BuildFilters() (FilterChain, error) {
	var chain FilterChain
	for _, pattern := range c.IgnorePatterns {
		filter, err := NewRegexFilter(pattern)
		if err != nil {
			return nil, err
		}
		chain = append(chain, filter)
	}
	if len(c.AllowedDomains) > 0 {
		filter, err := NewDomainFilter(c.AllowedDomains)
		if err != nil {
			return nil, err
		}
		chain = append(chain, filter)
	}
	return chain, nil
}

// PrepareSeeds parses, normalizes, sorts, and deduplicates the raw seed URLs,
// dropping the ones the filter chain ignores. A seed that does not parse as
// an absolute URL is a ConfigError.
func PrepareSeeds(raw []string, chain FilterChain) ([]*url.URL, error) {
	seeds := make([]*url.URL, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || !u.IsAbs() || u.Hostname() == "" {
			return nil, &ConfigError{Field: "seeds", Reason: "not an absolute URL: " + s}
		}
		u.Fragment = ""
		u.RawFragment = ""
		seeds = append(seeds, u)
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i].String() < seeds[j].String() })

	out := seeds[:0]
	var prev string
	for _, u := range seeds {
		s := u.String()
		if s == prev || chain.Ignore(u) {
			continue
		}
		prev = s
		out = append(out, u)
	}
	return out, nil
}

// SearchResult is what a backend produces for one page: the raw links found
// on it (possibly relative) and one extracted JSON value. A null value means
// no artifact was produced.
type SearchResult struct {
	Links []string
	Value json.RawMessage
}

// Backend opens a page in a browser (or plain HTTP) session and extracts
// links plus one JSON value from it. A backend is exclusively owned by a
// single engine and is never shared between in-flight fetches.
type Backend interface {
	Search(ctx context.Context, pageURL *url.URL) (SearchResult, error)
	Close(ctx context.Context) error
}

// BackendBuilder constructs backend sessions on demand. Building may be slow
// (launching a browser), so it takes a context.
type BackendBuilder interface {
	Build(ctx context.Context) (Backend, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
