// Package httptransport implements the inventory REST API over HTTP.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Client talks to the inventory REST API. It implements
// inventory.ProductAPI and inventory.OrderAPI.
type Client struct {
	baseURL string
	http    *http.Client
	limits  Limits
	headers http.Header
	logger  *logging.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limits:  DefaultLimits(),
		headers: make(http.Header),
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("transport/http")
	return c
}

// BaseURL returns the base URL for the client
func (c *Client) BaseURL() string { return c.baseURL }

// Limits returns the current limits configuration
func (c *Client) Limits() Limits { return c.limits }

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do sends one request. in, when non-nil, is encoded as the JSON body; out,
// when non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, op errors.Operation, method, path string, in, out interface{}) error {
	url := c.baseURL + path

	var body io.Reader
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return errors.E(op, errors.Component("transport/http"), errors.KindInternal, err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.E(op, errors.Component("transport/http"), errors.KindInternal, err, "build request")
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.limits.EnableGzip {
		// Set explicitly so the response is not decompressed behind our back
		// and the size limits apply to the decompressed body too.
		req.Header.Set("Accept-Encoding", "gzip")
		if len(payload) > c.limits.GzipMinBytes {
			buf, err := gzipBody(payload)
			if err != nil {
				return errors.E(op, errors.Component("transport/http"), errors.KindInternal, err)
			}
			req.Body = io.NopCloser(buf)
			req.ContentLength = int64(buf.Len())
			req.GetBody = nil
			req.Header.Set("Content-Encoding", "gzip")
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.String("error", err.Error()))
		return errors.E(op, errors.Component("transport/http"), errors.KindTransient, errors.ErrCodeNetworkFailure,
			err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp, c.limits.MaxBodyBytes)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	reader, cleanup, err := safeResponseReader(resp, c.limits)
	defer cleanup()
	if err != nil {
		return errors.WrapOpComponentKind(err, string(op), "transport/http", errors.KindPermanent)
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		if stderrors.Is(err, errDecompressedTooLarge) {
			return errors.E(op, errors.Component("transport/http"), errors.KindPermanent, err, "response exceeds size limit")
		}
		return errors.E(op, errors.Component("transport/http"), errors.KindPermanent, err, "decode response")
	}
	return nil
}
