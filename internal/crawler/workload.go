package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkharvest/internal/progress"
)

// Statistics counts what happened during one crawl. All counters are
// monotonically increasing and returned once at crawl completion.
type Statistics struct {
	Visited   int `json:"visited"`
	Collected int `json:"collected"`
	Errors    int `json:"errors"`
	Retries   int `json:"retries"`
}

// completion is the only message a fetch goroutine sends back to the loop.
type completion struct {
	engine *Engine
	url    *url.URL
	links  []*url.URL
	value  json.RawMessage
	err    error
	dur    time.Duration
}

// Workload is the crawl control loop. It owns the frontier and the seen set,
// drives the engine ring, merges fresh and retried URLs according to the
// retry policy, applies the artifact limit, and terminates when no work
// remains or the context is canceled.
type Workload struct {
	cfg     Config
	ring    *EngineRing
	retries *RetryPool
	robots  RobotsPolicy
	logger  *zap.Logger
	hub     *progress.Hub
	crawlID [16]byte

	frontier []*url.URL
	seen     map[string]struct{}
}

// NewWorkload wires a workload from its injectable parts. hub may be nil;
// robots may be nil when the robots check is disabled.
func NewWorkload(
	cfg Config,
	ring *EngineRing,
	retries *RetryPool,
	robots RobotsPolicy,
	logger *zap.Logger,
	hub *progress.Hub,
	crawlID [16]byte,
) *Workload {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workload{
		cfg:     cfg,
		ring:    ring,
		retries: retries,
		robots:  robots,
		logger:  logger,
		hub:     hub,
		crawlID: crawlID,
		seen:    make(map[string]struct{}),
	}
}

// Run crawls from the seed set to exhaustion, the artifact limit, or context
// cancellation, and returns the collected values with final statistics.
//
// Cancellation is graceful: intake stops immediately but already-dispatched
// fetches are awaited to completion, so no browser session is abandoned
// mid-navigation. Only a BuildError is fatal; per-URL failures are absorbed
// into the statistics.
func (w *Workload) Run(ctx context.Context, seeds []*url.URL) ([]json.RawMessage, Statistics, error) {
	if len(seeds) == 0 {
		return nil, Statistics{}, nil
	}

	w.emit(progress.StageCrawlStart, "", -1, 0, "")
	w.admit(ctx, seeds)

	// Buffered to capacity so a fetch goroutine can always deliver its
	// completion and exit, even after the loop has stopped filling.
	completions := make(chan completion, w.ring.Capacity())

	var (
		results []json.RawMessage
		stats   Statistics
		closed  bool
	)

	for {
		if !closed && ctx.Err() != nil {
			w.logger.Info("cancellation received; waiting for working engines")
			closed = true
		}

		if !closed {
			if err := w.fill(ctx, completions); err != nil {
				w.drainAbandoned(completions)
				w.emit(progress.StageCrawlDone, "", -1, 0, "build failure")
				return nil, Statistics{}, err
			}
		}

		if w.ring.InUse() == 0 {
			if closed || !w.hasWork() {
				break
			}
			continue
		}

		if closed {
			w.react(ctx, <-completions, &results, &stats, &closed)
			continue
		}

		select {
		case c := <-completions:
			w.react(ctx, c, &results, &stats, &closed)
		case <-ctx.Done():
			closed = true
		}
	}

	w.emit(progress.StageCrawlDone, "", -1, 0, "")
	w.logger.Info("crawl finished",
		zap.Int("visited", stats.Visited),
		zap.Int("collected", stats.Collected),
		zap.Int("errors", stats.Errors),
		zap.Int("retries", stats.Retries),
	)
	return results, stats, nil
}

// fill dispatches fetches while an idle slot and an admissible URL both
// exist. Dispatched fetches run on a context detached from cancellation so a
// canceled crawl still drains cleanly.
func (w *Workload) fill(ctx context.Context, completions chan<- completion) error {
	fetchCtx := context.WithoutCancel(ctx)
	for w.ring.InUse() < w.ring.Capacity() {
		u, ok := w.nextURL()
		if !ok {
			return nil
		}
		engine, err := w.ring.Obtain(ctx)
		if err != nil {
			w.logger.Error("engine build failed; aborting crawl", zap.Error(err))
			return err
		}
		w.emit(progress.StageFetchStart, u.String(), int(engine.ID()), 0, "")
		go func(e *Engine, u *url.URL) {
			start := time.Now()
			links, value, err := e.Run(fetchCtx, u)
			completions <- completion{
				engine: e,
				url:    u,
				links:  links,
				value:  value,
				err:    err,
				dur:    time.Since(start),
			}
		}(engine, u)
	}
	return nil
}

// react folds one fetch completion into the crawl state.
func (w *Workload) react(
	ctx context.Context,
	c completion,
	results *[]json.RawMessage,
	stats *Statistics,
	closed *bool,
) {
	stats.Visited++
	w.ring.ReturnBack(c.engine)

	if c.err != nil {
		w.reactFailure(c, stats)
		return
	}

	w.emit(progress.StageFetchDone, c.url.String(), int(c.engine.ID()), c.dur, "")

	if !isNullValue(c.value) {
		*results = append(*results, c.value)
		stats.Collected++
		w.emit(progress.StageCollect, c.url.String(), int(c.engine.ID()), 0, "")
		if w.cfg.Limit > 0 && len(*results) >= w.cfg.Limit {
			w.logger.Info("artifact limit reached; closing intake", zap.Int("limit", w.cfg.Limit))
			*closed = true
		}
	}

	if !*closed {
		w.admit(ctx, c.links)
	}
}

func (w *Workload) reactFailure(c completion, stats *Statistics) {
	var fetchErr *FetchError
	if errors.As(c.err, &fetchErr) && fetchErr.Timeout && w.cfg.RetryPolicy != RetryNo {
		if w.retries.KeepRetry(c.url) {
			stats.Retries++
			w.logger.Warn("page timed out; re-queued",
				zap.Int("engine", int(c.engine.ID())),
				zap.String("url", c.url.String()),
			)
			w.emit(progress.StageRetry, c.url.String(), int(c.engine.ID()), c.dur, "")
			return
		}
		// Retry budget exhausted; the URL stays in the seen set and is
		// dropped for good.
		stats.Errors++
		w.logger.Warn("retry budget exhausted; dropping url",
			zap.Int("engine", int(c.engine.ID())),
			zap.String("url", c.url.String()),
		)
		w.emit(progress.StageError, c.url.String(), int(c.engine.ID()), c.dur, "retry budget exhausted")
		return
	}

	stats.Errors++
	w.logger.Error("page fetch failed",
		zap.Int("engine", int(c.engine.ID())),
		zap.String("url", c.url.String()),
		zap.Error(c.err),
	)
	w.emit(progress.StageError, c.url.String(), int(c.engine.ID()), c.dur, c.err.Error())
}

// admit pushes URLs into the frontier through the seen-set and, when
// enabled, the robots check. Insertion is idempotent: a URL already seen is
// dropped, and a URL the robots check refuses (or fails on) is marked seen
// and dropped without a retry.
func (w *Workload) admit(ctx context.Context, urls []*url.URL) {
	for _, u := range urls {
		key := u.String()
		if _, ok := w.seen[key]; ok {
			continue
		}
		w.seen[key] = struct{}{}

		if w.cfg.UseRobots && w.robots != nil {
			allowed, err := w.robots.Allowed(ctx, w.cfg.RobotName, u)
			if err != nil {
				w.logger.Warn("robots check failed; dropping url", zap.String("url", key), zap.Error(err))
				continue
			}
			if !allowed {
				w.logger.Debug("robots disallow", zap.String("url", key))
				continue
			}
		}
		w.frontier = append(w.frontier, u)
	}
}

// nextURL merges the frontier and the retry pool per the configured policy.
func (w *Workload) nextURL() (*url.URL, bool) {
	switch w.cfg.RetryPolicy {
	case RetryFirst:
		if u, ok := w.retries.GetURL(len(w.frontier) == 0); ok {
			return u, true
		}
		return w.popFrontier()
	case RetryLast:
		if u, ok := w.popFrontier(); ok {
			return u, true
		}
		return w.retries.GetURL(true)
	default:
		return w.popFrontier()
	}
}

func (w *Workload) popFrontier() (*url.URL, bool) {
	n := len(w.frontier)
	if n == 0 {
		return nil, false
	}
	u := w.frontier[n-1]
	w.frontier = w.frontier[:n-1]
	return u, true
}

func (w *Workload) hasWork() bool {
	return len(w.frontier) > 0 || !w.retries.Empty()
}

// drainAbandoned awaits every in-flight fetch after a fatal build error so no
// backend session leaks, discarding their outcomes.
func (w *Workload) drainAbandoned(completions <-chan completion) {
	for w.ring.InUse() > 0 {
		c := <-completions
		w.ring.ReturnBack(c.engine)
	}
}

func (w *Workload) emit(stage progress.Stage, pageURL string, engine int, dur time.Duration, note string) {
	if w.hub == nil {
		return
	}
	w.hub.Emit(progress.Event{
		CrawlID: w.crawlID,
		TS:      time.Now().UTC(),
		Stage:   stage,
		URL:     pageURL,
		Engine:  engine,
		Dur:     dur,
		Note:    note,
	})
}

var nullJSON = []byte("null")

// isNullValue treats a missing or JSON-null extracted value as "no artifact
// produced"; such values are not appended to the result list.
func isNullValue(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), nullJSON)
}
