// Package eodhd is a client of the EOD Historical Data API, used to map
// security identifiers to tickers and to check that tickers are quoted.
package eodhd

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the EODHD API root.
const DefaultBaseURL = "https://eodhd.com/api"

// Client calls the EODHD API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *zap.Logger

	cacheDir string // daily disk cache, disabled if empty
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the http client used for all calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDailyCache caches successful responses in 'dir' for the day. An empty
// dir is the system temp dir.
func WithDailyCache(dir string) Option {
	return func(c *Client) {
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "tradebook")
		}
		c.cacheDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client using 'apiKey'.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheDir != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http = &http.Client{
			Transport: &diskCache{base: base, dir: c.cacheDir, log: c.log},
			Timeout:   c.http.Timeout,
		}
	}
	return c
}
