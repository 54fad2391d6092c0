package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUserAgent = "lantern/0.1"
	requestTimeout   = 30 * time.Second
)

// HTTP reads a log served over HTTP. Size and modification time come from a
// HEAD request (Content-Length, Last-Modified); ranges are fetched with the
// Range header.
type HTTP struct {
	url       *url.URL
	http      *http.Client
	userAgent string
}

// Ensure HTTP implements Source at compile time.
var _ Source = (*HTTP)(nil)

// NewHTTP builds an HTTP source for rawURL. A nil client uses a default
// client with a request timeout.
func NewHTTP(rawURL string, client *http.Client) (*HTTP, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &HTTP{url: u, http: client, userAgent: defaultUserAgent}, nil
}

// Name implements Source.
func (h *HTTP) Name() string { return h.url.String() }

// Stat implements Source.
func (h *HTTP) Stat(ctx context.Context) (Info, error) {
	resp, err := h.do(ctx, http.MethodHead, nil)
	if err != nil {
		return Info{}, &ReadError{Source: h.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Info{}, &ReadError{Source: h.Name(), Err: fmt.Errorf("head returned status %d", resp.StatusCode)}
	}
	if resp.ContentLength < 0 {
		return Info{}, &ReadError{Source: h.Name(), Err: fmt.Errorf("server did not report a content length")}
	}
	info := Info{Size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.ModTime = t
		}
	}
	return info, nil
}

// ReadRange implements Source.
func (h *HTTP) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if start == end {
		return []byte{}, nil
	}
	header := http.Header{}
	header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end-1, 10))

	resp, err := h.do(ctx, http.MethodGet, header)
	if err != nil {
		return nil, &ReadError{Source: h.Name(), Start: start, End: end, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	want := end - start
	switch resp.StatusCode {
	case http.StatusPartialContent:
		buf := make([]byte, want)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, &ReadError{Source: h.Name(), Start: start, End: end, Err: fmt.Errorf("read body: %w", err)}
		}
		return buf, nil
	case http.StatusOK:
		// Server ignored the Range header; skip to the window ourselves.
		if _, err := io.CopyN(io.Discard, resp.Body, start); err != nil {
			return nil, &ReadError{Source: h.Name(), Start: start, End: end, Err: fmt.Errorf("skip body: %w", err)}
		}
		buf := make([]byte, want)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, &ReadError{Source: h.Name(), Start: start, End: end, Err: fmt.Errorf("read body: %w", err)}
		}
		return buf, nil
	default:
		return nil, &ReadError{Source: h.Name(), Start: start, End: end, Err: fmt.Errorf("get returned status %d", resp.StatusCode)}
	}
}

func (h *HTTP) do(ctx context.Context, method string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", h.userAgent)
	// Compressed bodies would break byte offsets.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func parseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Fragment = ""
	return u, nil
}
