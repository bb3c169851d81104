package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedBackend replays canned results per URL.
type scriptedBackend struct {
	results map[string]SearchResult
	errs    map[string]error
	closed  bool
}

func (b *scriptedBackend) Search(_ context.Context, pageURL *url.URL) (SearchResult, error) {
	if err, ok := b.errs[pageURL.String()]; ok {
		return SearchResult{}, err
	}
	return b.results[pageURL.String()], nil
}

func (b *scriptedBackend) Close(context.Context) error {
	b.closed = true
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestEngineRunValidatesLinks(t *testing.T) {
	t.Parallel()

	page := "http://example.net/dir/page"
	backend := &scriptedBackend{results: map[string]SearchResult{
		page: {
			Links: []string{
				"sub",                          // relative, resolved against the page
				"/root",                        // absolute path
				"http://other.net/x#fragment",  // fragment must be stripped
				"http://example.net/skip.jpg",  // filtered out
				"javascript:void(0)",           // not http(s)
				"mailto:x@example.net",         // not http(s)
				"http://%zz.invalid/unparsable", // dropped silently
			},
			Value: json.RawMessage(`"d1"`),
		},
	}}

	jpg, err := NewRegexFilter(`\.jpg$`)
	require.NoError(t, err)
	engine := NewEngine(0, backend, FilterChain{jpg}, zap.NewNop())

	links, value, err := engine.Run(context.Background(), mustParse(t, page))
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`"d1"`), value)

	got := make([]string, 0, len(links))
	for _, l := range links {
		got = append(got, l.String())
	}
	require.Equal(t, []string{
		"http://example.net/dir/sub",
		"http://example.net/root",
		"http://other.net/x",
	}, got)
}

func TestEngineRunTimeoutClassification(t *testing.T) {
	t.Parallel()

	page := "http://slow.net/"
	backend := &scriptedBackend{errs: map[string]error{page: timeoutErr{}}}
	engine := NewEngine(1, backend, nil, zap.NewNop())

	_, _, err := engine.Run(context.Background(), mustParse(t, page))
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, fetchErr.Timeout)
	require.Equal(t, page, fetchErr.URL)
}

func TestEngineRunDeadlineIsTimeout(t *testing.T) {
	t.Parallel()

	page := "http://slow.net/"
	backend := &scriptedBackend{errs: map[string]error{page: context.DeadlineExceeded}}
	engine := NewEngine(1, backend, nil, zap.NewNop())

	_, _, err := engine.Run(context.Background(), mustParse(t, page))
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, fetchErr.Timeout)
}

func TestEngineRunPlainErrorNotRetryable(t *testing.T) {
	t.Parallel()

	page := "http://broken.net/"
	backend := &scriptedBackend{errs: map[string]error{page: errors.New("boom")}}
	engine := NewEngine(2, backend, nil, zap.NewNop())

	_, _, err := engine.Run(context.Background(), mustParse(t, page))
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.False(t, fetchErr.Timeout)
}

func TestEngineRunCanceledIsNotTimeout(t *testing.T) {
	t.Parallel()

	page := "http://gone.net/"
	backend := &scriptedBackend{errs: map[string]error{page: context.Canceled}}
	engine := NewEngine(3, backend, nil, zap.NewNop())

	_, _, err := engine.Run(context.Background(), mustParse(t, page))
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.False(t, fetchErr.Timeout)
}

func TestEngineClose(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{}
	engine := NewEngine(0, backend, nil, zap.NewNop())
	require.NoError(t, engine.Close(context.Background()))
	require.True(t, backend.closed)
}
