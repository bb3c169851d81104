// Package collyfetcher implements the crawl backend with plain HTTP via
// gocolly. It is the fast path for static sites: no JavaScript runs, and the
// extracted value is always the page title.
package collyfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkharvest/internal/crawler"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Builder hands out colly backends sharing one base collector and transport.
type Builder struct {
	cfg  Config
	base *colly.Collector
}

// NewBuilder builds the shared collector. Robots handling is deliberately off
// here; the workload gates URLs before they ever reach a backend.
func NewBuilder(cfg Config) *Builder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []colly.CollectorOption{
		colly.Async(false),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	// The workload owns deduplication and the robots gate; the collector must
	// not second-guess either.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport())

	return &Builder{cfg: cfg, base: c}
}

// Build implements crawler.BackendBuilder.
func (b *Builder) Build(context.Context) (crawler.Backend, error) {
	return &Backend{cfg: b.cfg, base: b.base}, nil
}

// Backend runs one HTTP GET per Search using a clone of the base collector.
type Backend struct {
	cfg  Config
	base *colly.Collector
}

// Search fetches u, returning every anchor href and the page title as a JSON
// string. Pages without a title yield a null value.
func (b *Backend) Search(ctx context.Context, u *url.URL) (crawler.SearchResult, error) {
	var (
		links    []string
		title    string
		fetchErr error
	)

	collector := b.base.Clone()
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		links = append(links, e.Attr("href"))
	})
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
		b.cfg.Logger.Debug("colly fetch failed", zap.String("url", u.String()), zap.Error(err))
	})

	if err := collector.Request(http.MethodGet, u.String(), nil, colly.NewContext(), nil); err != nil {
		return crawler.SearchResult{}, fmt.Errorf("colly request: %w", err)
	}
	collector.Wait()
	if fetchErr != nil {
		return crawler.SearchResult{}, fmt.Errorf("colly fetch: %w", fetchErr)
	}
	if err := ctx.Err(); err != nil {
		return crawler.SearchResult{}, err
	}

	return crawler.SearchResult{
		Links: links,
		Value: titleValue(title),
	}, nil
}

// Close implements crawler.Backend. Colly holds no per-backend resources.
func (b *Backend) Close(context.Context) error { return nil }

func titleValue(title string) json.RawMessage {
	if title == "" {
		return json.RawMessage("null")
	}
	encoded, err := json.Marshal(title)
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(encoded)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
