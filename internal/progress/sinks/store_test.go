package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkharvest/internal/progress"
)

func event(stage progress.Stage, url string) progress.Event {
	return progress.Event{
		CrawlID: progress.UUIDToBytes(uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")),
		TS:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Stage:   stage,
		URL:     url,
		Engine:  0,
	}
}

func TestStoreFoldsEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewStore()
	require.NoError(t, store.Consume(ctx, []progress.Event{
		event(progress.StageCrawlStart, ""),
		event(progress.StageFetchStart, "http://a.com"),
		event(progress.StageFetchDone, "http://a.com"),
		event(progress.StageCollect, "http://a.com"),
		event(progress.StageFetchStart, "http://b.com"),
		event(progress.StageRetry, "http://b.com"),
		event(progress.StageFetchStart, "http://c.com"),
		event(progress.StageError, "http://c.com"),
		event(progress.StageCrawlDone, ""),
	}))

	snap := store.Snapshot()
	require.Equal(t, "3b241101-e2bb-4255-8caf-4136c566a962", snap.CrawlID)
	require.False(t, snap.Running)
	require.Equal(t, 3, snap.Visited)
	require.Equal(t, 1, snap.Collected)
	require.Equal(t, 1, snap.Retries)
	require.Equal(t, 1, snap.Errors)
	require.Equal(t, 0, snap.InFlight)
	require.Equal(t, "http://c.com", snap.LastURL)
	require.NoError(t, store.Close(ctx))
}
