// Package fetch retrieves raw content for a locator over HTTP or from local disk.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/apresai/hydrator/internal/ingest"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; hydrator/1.0)"

// Fetcher retrieves the raw content behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (*ingest.Raw, error)
}

// Error represents a failure to fetch a locator. StatusCode is zero for
// transport and validation failures.
type Error struct {
	Locator    string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Locator, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.Locator, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// RequestsPerSecond limits outgoing HTTP requests. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		MaxBytes:  ingest.MaxInputSize,
	}
}

func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o == nil {
		return out
	}
	*out = *o
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.UserAgent == "" {
		out.UserAgent = DefaultUserAgent
	}
	if out.MaxBytes <= 0 {
		out.MaxBytes = ingest.MaxInputSize
	}
	if out.Burst <= 0 {
		out.Burst = 1
	}
	return out
}

// Router sends URL locators to an HTTP fetcher and everything else to disk.
type Router struct {
	http Fetcher
	file Fetcher
}

// New creates a Router with default HTTP and file fetchers.
func New(opts *Options) *Router {
	return &Router{
		http: NewHTTPFetcher(opts),
		file: NewFileFetcher(opts),
	}
}

func (r *Router) Fetch(ctx context.Context, locator string) (*ingest.Raw, error) {
	if ingest.DetectSource(locator) == ingest.SourceURL {
		return r.http.Fetch(ctx, locator)
	}
	return r.file.Fetch(ctx, locator)
}

// HTTPFetcher performs GET requests.
type HTTPFetcher struct {
	client  *http.Client
	opts    *Options
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(opts *Options) *HTTPFetcher {
	opts = opts.withDefaults()
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	f := &HTTPFetcher{client: client, opts: opts}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (*ingest.Raw, error) {
	parsed, err := url.Parse(locator)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &Error{Locator: locator, Message: "invalid URL", Cause: err}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &Error{Locator: locator, Message: "rate limit wait", Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, &Error{Locator: locator, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Locator: locator, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Locator:    locator,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, &Error{Locator: locator, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, &Error{
			Locator:    locator,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("response larger than %d MB", f.opts.MaxBytes/(1024*1024)),
		}
	}

	return &ingest.Raw{
		Locator:     locator,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// FileFetcher reads locators that name local files, with or without a file:// prefix.
type FileFetcher struct {
	maxBytes int64
}

// NewFileFetcher creates a file fetcher.
func NewFileFetcher(opts *Options) *FileFetcher {
	return &FileFetcher{maxBytes: opts.withDefaults().MaxBytes}
}

func (f *FileFetcher) Fetch(ctx context.Context, locator string) (*ingest.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Locator: locator, Message: "cancelled", Cause: err}
	}

	path := strings.TrimPrefix(locator, "file://")
	if err := f.validateFile(path); err != nil {
		return nil, &Error{Locator: locator, Message: "invalid file", Cause: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Locator: locator, Message: "could not read file", Cause: err}
	}

	return &ingest.Raw{
		Locator:     locator,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func (f *FileFetcher) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > f.maxBytes {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), f.maxBytes/(1024*1024))
	}
	return nil
}
