package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	raw, err := NewHTTPFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, raw.Locator)
	assert.Equal(t, "text/html; charset=utf-8", raw.ContentType)
	assert.Contains(t, string(raw.Data), "<h1>Test</h1>")
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestHTTPFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(nil).Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	for _, locator := range []string{"not-a-valid-url", "https://", "ftp://example.com/file"} {
		_, err := NewHTTPFetcher(nil).Fetch(context.Background(), locator)

		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr, locator)
		assert.Equal(t, 0, fetchErr.StatusCode)
		assert.Contains(t, err.Error(), "invalid URL")
	}
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPFetcher(nil).Fetch(context.Background(), url)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "HTTP request failed", fetchErr.Message)
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(&Options{MaxBytes: 16}).Fetch(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "larger than")
}

func TestHTTPFetcher_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(&Options{RequestsPerSecond: 0.001, Burst: 1})
	_, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "rate limit wait", fetchErr.Message)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>hi</p>"), 0o644))

	raw, err := NewFileFetcher(nil).Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(raw.Data))
	assert.True(t, strings.HasPrefix(raw.ContentType, "text/html"))

	_, err = NewFileFetcher(nil).Fetch(context.Background(), dir)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "is a directory")

	_, err = NewFileFetcher(nil).Fetch(context.Background(), filepath.Join(dir, "missing.txt"))
	require.ErrorAs(t, err, &fetchErr)
}

func TestRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("remote"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	r := New(nil)
	remote, err := r.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(remote.Data))

	local, err := r.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(local.Data))
}
