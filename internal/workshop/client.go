package workshop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	urlpkg "net/url"
	"strconv"
	"strings"
	"time"

	"modcheck/internal/telemetry"
)

// DefaultBaseURL is the public workshop site.
const DefaultBaseURL = "https://reforger.armaplatform.com"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
)

// browserHeaders are sent on every request; the site serves reduced markup to
// clients that do not look like a browser.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Accept-Encoding": "gzip, deflate, br",
	"Cache-Control":   "no-cache",
}

// ErrTooManyRedirects is wrapped by the NetworkError returned when the redirect bound is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRedirects int
}

// Client fetches pages from the workshop site.
type Client struct {
	http    *http.Client
	base    *urlpkg.URL
	timeout time.Duration
}

// NewClient returns a Client with browser-like defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	base, err := urlpkg.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = 5 * time.Second
	transport.ResponseHeaderTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second

	maxRedirects := opts.MaxRedirects
	return &Client{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
				}
				return nil
			},
		},
		base:    base,
		timeout: opts.Timeout,
	}, nil
}

// RequestOptions tunes a single Fetch. Header values override the browser defaults.
type RequestOptions struct {
	Method  string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is a fully read, decoded response. Non-2xx statuses are returned as data.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// NetworkError is a transport-level failure: DNS, connect, reset, timeout,
// redirect loop or an undecodable body.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request was aborted by its deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StatusError is a completed request whose status was not 200.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// DetailURL returns the detail page of a mod.
func (c *Client) DetailURL(modID string) string {
	return c.base.String() + "/workshop/" + urlpkg.PathEscape(modID)
}

// ChangelogURL returns the changelog page of a mod.
func (c *Client) ChangelogURL(modID string) string {
	return c.DetailURL(modID) + "/changelog"
}

// SearchURL returns the listing page for a free-text search.
func (c *Client) SearchURL(term string) string {
	return c.base.String() + "/workshop?search=" + urlpkg.QueryEscape(term)
}

// Fetch performs one request, follows redirects and decodes the body.
// The request is aborted when opts.Timeout (or the client default) elapses.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.Event("workshop_request", map[string]string{
			"method":      method,
			"url":         rawURL,
			"status":      "error",
			"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		})
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	telemetry.Event("workshop_request", map[string]string{
		"method":      method,
		"url":         rawURL,
		"status":      strconv.Itoa(resp.StatusCode),
		"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
	})
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Page fetches the detail page of a mod.
func (c *Client) Page(ctx context.Context, modID string) (*Response, error) {
	return c.Fetch(ctx, c.DetailURL(modID), nil)
}
