package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore downloads images from <baseURL>/<bucket>/<key>, e.g. a public
// object-storage endpoint or CDN origin.
type HTTPStore struct {
	client    *http.Client
	baseURL   string
	userAgent string
	headers   map[string]string
}

// HTTPOptions configures an HTTPStore.
type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
}

// NewHTTPStore creates an HTTPStore.
func NewHTTPStore(opts HTTPOptions) (*HTTPStore, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "drape/1.0.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPStore{
		client:    &http.Client{Timeout: opts.Timeout},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		headers:   opts.Headers,
	}, nil
}

// Fetch downloads the object named by loc.
func (s *HTTPStore) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(loc), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s (HTTP %d)", ErrAccessDenied, loc, resp.StatusCode)
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
}

func (s *HTTPStore) objectURL(loc Locator) string {
	var parts []string
	if loc.Bucket != "" {
		parts = append(parts, url.PathEscape(loc.Bucket))
	}
	for _, p := range strings.Split(loc.Key, "/") {
		parts = append(parts, url.PathEscape(p))
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
