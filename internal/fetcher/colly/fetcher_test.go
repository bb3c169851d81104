package collyfetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCollectsLinksAndTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Front Page </title></head><body>
			<a href="/about">about</a>
			<a href="https://other.example/x">x</a>
			<p>no link here</p>
		</body></html>`))
	}))
	defer srv.Close()

	backend := buildBackend(t, Config{UserAgent: "linkharvest-test"})
	res, err := backend.Search(context.Background(), mustParse(t, srv.URL+"/"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/about", "https://other.example/x"}, res.Links)

	var title string
	require.NoError(t, json.Unmarshal(res.Value, &title))
	assert.Equal(t, "Front Page", title)
}

func TestSearchWithoutTitleYieldsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/a">a</a></body></html>`))
	}))
	defer srv.Close()

	backend := buildBackend(t, Config{})
	res, err := backend.Search(context.Background(), mustParse(t, srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), res.Value)
}

func TestSearchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	backend := buildBackend(t, Config{})
	_, err := backend.Search(context.Background(), mustParse(t, srv.URL+"/"))
	require.Error(t, err)
}

func TestSearchAllowsRevisits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>again</title></head><body></body></html>`))
	}))
	defer srv.Close()

	backend := buildBackend(t, Config{})
	u := mustParse(t, srv.URL+"/")
	for i := 0; i < 2; i++ {
		res, err := backend.Search(context.Background(), u)
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`"again"`), res.Value)
	}
}

func TestNewBuilderDefaults(t *testing.T) {
	b := NewBuilder(Config{})
	assert.Equal(t, 10*time.Second, b.cfg.Timeout)
	assert.NotNil(t, b.cfg.Logger)
}

func buildBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	backend, err := NewBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	return backend.(*Backend)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
