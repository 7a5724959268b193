package specsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

func TestHTTPFetcher_Supports(t *testing.T) {
	f := NewHTTPFetcher(nil, "")

	assert.True(t, f.Supports("http://localhost/spec.json"))
	assert.True(t, f.Supports("https://example.com/spec.yaml"))
	assert.False(t, f.Supports("/tmp/spec.json"))
	assert.False(t, f.Supports("github://o/r/p"))
}

func TestHTTPFetcher_FetchAndConditionalGet(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(petstoreYAML))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), "specfrag-test")

	spec, err := f.Fetch(context.Background(), server.URL+"/spec.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, spec.ETag)
	assert.Equal(t, "1.0.7", spec.Document.Version())
	assert.Equal(t, "specfrag-test", gotUA)

	_, err = f.Fetch(context.Background(), server.URL+"/spec.yaml", `"v1"`)
	assert.ErrorIs(t, err, domain.ErrNotModified)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/html":
			_, _ = w.Write([]byte("<html>oops"))
		case "/huge":
			_, _ = w.Write([]byte("{\"x\": \"" + strings.Repeat("a", MaxDocumentSize) + "\"}"))
		}
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), "")

	_, err := f.Fetch(context.Background(), server.URL+"/missing", "")
	assert.ErrorIs(t, err, domain.ErrSpecUnavailable)

	_, err = f.Fetch(context.Background(), server.URL+"/html", "")
	assert.ErrorIs(t, err, domain.ErrInvalidSpec)

	_, err = f.Fetch(context.Background(), server.URL+"/huge", "")
	assert.ErrorIs(t, err, domain.ErrInvalidSpec)

	_, err = f.Fetch(context.Background(), "http://[::1]:namedport", "")
	assert.Error(t, err)
}

func TestHTTPFetcher_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPFetcher(server.Client(), "").Fetch(ctx, server.URL, "")
	assert.ErrorIs(t, err, domain.ErrSpecUnavailable)
}
