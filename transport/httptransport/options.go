package httptransport

import (
	"net/http"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Limits defines size and compression limits for the HTTP client
type Limits struct {
	MaxBodyBytes         int64 // Maximum response body size in bytes
	MaxDecompressedBytes int64 // Maximum decompressed response size
	EnableGzip           bool  // Whether to gzip request bodies
	GzipMinBytes         int   // Minimum bytes before applying gzip compression
}

// DefaultLimits returns the limits NewClient starts from.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes:         8 << 20,  // 8MB
		MaxDecompressedBytes: 64 << 20, // 64MB
		EnableGzip:           true,
		GzipMinBytes:         1024,
	}
}

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) {
		if cl != nil {
			c.http = cl
		}
	}
}

// WithLimits sets the size and compression limits
func WithLimits(l Limits) ClientOption {
	return func(c *Client) {
		c.limits = l
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the client logger
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHeader adds a header sent with every request, for example an
// Authorization token.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}
