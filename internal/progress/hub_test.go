package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	fail   bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.events = append(s.events, batch...)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent(stage Stage, url string) Event {
	return Event{
		CrawlID: UUIDToBytes(uuid.New()),
		TS:      time.Now().UTC(),
		Stage:   stage,
		URL:     url,
	}
}

func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	first := &recordingSink{}
	second := &recordingSink{}
	hub := NewHub(Config{Logger: zap.NewNop()}, first, second)

	hub.Emit(validEvent(StageCrawlStart, ""))
	hub.Emit(validEvent(StageFetchDone, "http://a.com"))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, first.Events(), 2)
	require.Len(t, second.Events(), 2)
	require.True(t, first.closed)
	require.True(t, second.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{Logger: zap.NewNop()}, sink)

	hub.Emit(Event{Stage: StageCrawlStart}) // no crawl id, no timestamp
	hub.Emit(validEvent(StageFetchDone, "")) // fetch stage without url
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Events())
}

func TestHubSurvivesFailingSink(t *testing.T) {
	t.Parallel()

	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	hub := NewHub(Config{Logger: zap.NewNop()}, bad, good)

	hub.Emit(validEvent(StageCollect, "http://a.com"))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, good.Events(), 1)
}

func TestHubNilIsNoop(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(validEvent(StageCrawlStart, ""))
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validEvent(StageCrawlStart, "").Validate())
	require.NoError(t, validEvent(StageRetry, "http://a.com").Validate())
	require.Error(t, validEvent(Stage("BOGUS"), "").Validate())
	require.Error(t, validEvent(StageError, "").Validate())

	evt := validEvent(StageFetchDone, "http://a.com")
	evt.Dur = -time.Second
	require.Error(t, evt.Validate())
}
