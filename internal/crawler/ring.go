package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// EngineRing is the bounded pool managing engine lifecycle. It lazily builds
// engines up to capacity, lends an idle one out, and reclaims it when the
// fetch completes. Engines are never destroyed mid-crawl; Close tears the
// built backends down at shutdown.
//
// The ring is owned by the workload loop and is not safe for concurrent use.
type EngineRing struct {
	builder BackendBuilder
	filters FilterChain
	logger  *zap.Logger

	free  []*Engine
	inUse map[EngineID]struct{}
	built int
	cap   int
}

// NewEngineRing builds an empty ring with the given capacity.
func NewEngineRing(builder BackendBuilder, filters FilterChain, capacity int, logger *zap.Logger) *EngineRing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineRing{
		builder: builder,
		filters: filters,
		logger:  logger,
		inUse:   make(map[EngineID]struct{}),
		cap:     capacity,
	}
}

// Obtain returns an idle engine, building a new one if the ring is below
// capacity. Requesting an engine while all slots are checked out is a caller
// logic error: the workload never dispatches more fetches than slots, so this
// panics instead of blocking.
func (r *EngineRing) Obtain(ctx context.Context) (*Engine, error) {
	if n := len(r.free); n > 0 {
		engine := r.free[n-1]
		r.free = r.free[:n-1]
		r.inUse[engine.ID()] = struct{}{}
		return engine, nil
	}

	if len(r.inUse) >= r.cap {
		panic("engine ring capacity exceeded; the workload must never request more engines than free slots")
	}

	backend, err := r.builder.Build(ctx)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	engine := NewEngine(EngineID(r.built), backend, r.filters, r.logger)
	r.built++
	r.inUse[engine.ID()] = struct{}{}
	r.logger.Debug("engine built", zap.Int("engine", int(engine.ID())))
	return engine, nil
}

// ReturnBack marks the engine idle and makes it available to future Obtain
// calls.
func (r *EngineRing) ReturnBack(engine *Engine) {
	delete(r.inUse, engine.ID())
	r.free = append(r.free, engine)
}

// Capacity returns the configured slot count.
func (r *EngineRing) Capacity() int { return r.cap }

// InUse returns the number of checked-out engines.
func (r *EngineRing) InUse() int { return len(r.inUse) }

// Close shuts down every idle engine's backend. All engines must have been
// returned before Close; the workload drains in-flight fetches first.
func (r *EngineRing) Close(ctx context.Context) error {
	if n := len(r.inUse); n > 0 {
		return fmt.Errorf("close ring: %d engines still in use", n)
	}
	var errs []error
	for _, engine := range r.free {
		if err := engine.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close engine %d: %w", engine.ID(), err))
		}
	}
	r.free = nil
	return errors.Join(errs...)
}
