package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/linkharvest/internal/progress"
)

// Snapshot is the latest aggregated view of a crawl, served by the status
// endpoint.
type Snapshot struct {
	CrawlID   string    `json:"crawl_id"`
	Running   bool      `json:"running"`
	Visited   int       `json:"visited"`
	Collected int       `json:"collected"`
	Errors    int       `json:"errors"`
	Retries   int       `json:"retries"`
	InFlight  int       `json:"in_flight"`
	LastURL   string    `json:"last_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store folds progress events into a Snapshot. Safe for concurrent use; the
// Hub writes while HTTP handlers read.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{}
}

// Consume implements progress.Sink.
func (s *Store) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.snap.CrawlID = uuid.UUID(evt.CrawlID).String()
		s.snap.UpdatedAt = evt.TS

		switch evt.Stage {
		case progress.StageCrawlStart:
			s.snap.Running = true
		case progress.StageCrawlDone:
			s.snap.Running = false
		case progress.StageFetchStart:
			s.snap.InFlight++
			s.snap.LastURL = evt.URL
		case progress.StageFetchDone:
			s.snap.InFlight--
			s.snap.Visited++
		case progress.StageCollect:
			s.snap.Collected++
		case progress.StageRetry:
			s.snap.InFlight--
			s.snap.Visited++
			s.snap.Retries++
		case progress.StageError:
			s.snap.InFlight--
			s.snap.Visited++
			s.snap.Errors++
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *Store) Close(context.Context) error { return nil }

// Snapshot returns a copy of the current view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
