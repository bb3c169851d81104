package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageFetchStart Stage = "FETCH_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageCollect    Stage = "COLLECT"
	StageRetry      Stage = "FETCH_RETRY"
	StageError      Stage = "FETCH_ERROR"
)

// Event captures a single milestone of crawler progress.
type Event struct {
	// CrawlID uniquely identifies a crawl run using the 16-byte UUID form.
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or fetch milestone occurred.
	Stage Stage
	// URL is the page URL for fetch-scoped stages.
	URL string
	// Engine is the pool slot that handled the fetch, -1 when not applicable.
	Engine int
	// Dur captures fetch latency for FETCH_DONE/FETCH_ERROR events.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone:
	case StageFetchStart, StageFetchDone, StageCollect, StageRetry, StageError:
		if e.URL == "" {
			return fmt.Errorf("%s requires a url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CrawlUUID converts the binary crawl ID to uuid.UUID for display.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
