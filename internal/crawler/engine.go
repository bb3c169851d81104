package crawler

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"
)

// EngineID identifies a pool slot. IDs are small integers assigned in build
// order and reused when an engine returns to the ring.
type EngineID int

// Engine pairs a backend session with the crawl's filter set. It performs one
// fetch-and-extract operation at a time and post-processes discovered links
// so only absolute, unfiltered, fragment-free URLs leave it.
type Engine struct {
	id      EngineID
	filters FilterChain
	backend Backend
	logger  *zap.Logger
}

// NewEngine wires an engine around an exclusively-owned backend.
func NewEngine(id EngineID, backend Backend, filters FilterChain, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{id: id, filters: filters, backend: backend, logger: logger}
}

// ID returns the slot id.
func (e *Engine) ID() EngineID { return e.id }

// Run fetches pageURL, returning the validated links discovered on the page
// and the extracted JSON value. Failures come back as a *FetchError carrying
// the URL and the timeout flag.
func (e *Engine) Run(ctx context.Context, pageURL *url.URL) ([]*url.URL, json.RawMessage, error) {
	e.logger.Debug("engine working",
		zap.Int("engine", int(e.id)),
		zap.String("url", pageURL.String()),
	)

	result, err := e.backend.Search(ctx, pageURL)
	if err != nil {
		return nil, nil, &FetchError{URL: pageURL.String(), Timeout: isTimeout(err), Err: err}
	}

	links := validateLinks(pageURL, result.Links, e.filters)
	e.logger.Debug("engine finished",
		zap.Int("engine", int(e.id)),
		zap.String("url", pageURL.String()),
		zap.Int("links_found", len(result.Links)),
		zap.Int("links_kept", len(links)),
	)
	return links, result.Value, nil
}

// Close shuts the backend session down. Called once, at process shutdown.
func (e *Engine) Close(ctx context.Context) error {
	return e.backend.Close(ctx)
}

// validateLinks resolves each discovered link against the page that produced
// it, drops unparsable and non-http(s) links, drops anything the filter chain
// ignores, and strips fragments so distinct-fragment duplicates collapse.
func validateLinks(base *url.URL, links []string, filters FilterChain) []*url.URL {
	out := make([]*url.URL, 0, len(links))
	for _, link := range links {
		u, ok := absoluteURL(base, link)
		if !ok || filters.Ignore(u) {
			continue
		}
		u.Fragment = ""
		u.RawFragment = ""
		out = append(out, u)
	}
	return out
}

func absoluteURL(base *url.URL, link string) (*url.URL, bool) {
	u, err := base.Parse(link)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
