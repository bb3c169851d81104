// Package headless implements the crawl backend that drives a real browser
// via chromedp. Page links and the configured extract script both run against
// the rendered DOM, so JavaScript-heavy sites work the same as static ones.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkharvest/internal/crawler"
)

// collectLinksJS gathers every anchor href as written in the document, leaving
// relative references relative so the caller can resolve them against the
// final page URL.
const collectLinksJS = `Array.from(document.querySelectorAll('a[href]')).map(a => a.getAttribute('href'))`

// Config controls the shared browser process and per-navigation behavior.
type Config struct {
	UserAgent       string
	PageLoadTimeout time.Duration
	ExtractScript   string
	Logger          *zap.Logger
}

// Builder owns the exec allocator shared by every browser tab. Each Build
// call opens one tab, which becomes one crawl engine's backend.
type Builder struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewBuilder starts the allocator for a headless Chrome process.
func NewBuilder(cfg Config) *Builder {
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Builder{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      cfg.Logger,
	}
}

// Build opens a fresh browser tab and verifies it is reachable.
func (b *Builder) Build(ctx context.Context) (crawler.Backend, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocator)

	// An empty Run forces chromedp to actually launch the browser and
	// attach the tab; without it failures surface only on first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open browser tab: %w", err)
	}

	b.logger.Debug("browser tab ready")
	return &Backend{
		cfg:       b.cfg,
		tab:       tabCtx,
		tabCancel: tabCancel,
		script:    wrapExtractScript(b.cfg.ExtractScript),
	}, nil
}

// Close shuts the browser process down. Backends built from this Builder stop
// working afterwards.
func (b *Builder) Close() {
	b.allocCancel()
}

// Backend is a single browser tab implementing crawler.Backend.
type Backend struct {
	cfg       Config
	tab       context.Context
	tabCancel context.CancelFunc
	script    string
}

// Search navigates to u, waits for the document body, then evaluates the link
// collector and the extract script against the rendered page.
func (b *Backend) Search(ctx context.Context, u *url.URL) (crawler.SearchResult, error) {
	runCtx, cancel := context.WithTimeout(b.tab, b.cfg.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		links []string
		raw   []byte
	)
	actions := []chromedp.Action{
		b.sessionSetupAction(),
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(collectLinksJS, &links),
		chromedp.Evaluate(b.script, &raw),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return crawler.SearchResult{}, fmt.Errorf("chromedp run: %w", err)
	}

	return crawler.SearchResult{
		Links: links,
		Value: json.RawMessage(raw),
	}, nil
}

// Close releases the tab.
func (b *Backend) Close(context.Context) error {
	b.tabCancel()
	return nil
}

func (b *Backend) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// wrapExtractScript turns a user-supplied script body into a single JSON
// yielding expression. The script runs as a function, so `return` works, and
// undefined collapses to null so the workload can discard it.
func wrapExtractScript(body string) string {
	return fmt.Sprintf(`(() => { const __r = (() => { %s })(); return __r === undefined ? null : __r; })()`, body)
}
