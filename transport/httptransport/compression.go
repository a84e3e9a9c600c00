package httptransport

import (
	"bytes"
	"compress/gzip"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errDecompressedTooLarge is a sentinel error for decompressed size limit violations
var errDecompressedTooLarge = stderrors.New("decompressed data exceeds maximum size limit")

// maxDecompressedReader wraps an io.Reader to enforce decompressed size limits
type maxDecompressedReader struct {
	reader   io.Reader
	limit    int64
	consumed int64
}

func (r *maxDecompressedReader) Read(p []byte) (int, error) {
	if r.consumed >= r.limit {
		return 0, errDecompressedTooLarge
	}
	if remaining := r.limit - r.consumed; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := r.reader.Read(p)
	r.consumed += int64(n)

	if r.consumed >= r.limit && err == nil {
		// Peek one byte to tell "exactly at the limit" from "over it".
		var one [1]byte
		if _, peekErr := r.reader.Read(one[:]); peekErr == nil {
			return n, errDecompressedTooLarge
		}
	}
	return n, err
}

// gzipBody compresses payload.
func gzipBody(payload []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return &buf, nil
}

// safeResponseReader enforces the body and decompressed size limits on a
// response. The returned cleanup must always be called.
func safeResponseReader(resp *http.Response, limits Limits) (io.Reader, func(), error) {
	body := io.LimitReader(resp.Body, limits.MaxBodyBytes+1)
	limited := &maxDecompressedReader{reader: body, limit: limits.MaxBodyBytes}

	encoding := strings.TrimSpace(strings.ToLower(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "":
		return limited, func() {}, nil
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, func() {}, fmt.Errorf("invalid gzip data: %w", err)
		}
		return &maxDecompressedReader{reader: gz, limit: limits.MaxDecompressedBytes}, func() { gz.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

// SafeRequestReader is the server-side counterpart: it rejects non-JSON
// bodies, caps the wire size at maxBytes and the decompressed size at
// maxDecompressed.
func SafeRequestReader(w http.ResponseWriter, r *http.Request, maxBytes, maxDecompressed int64) (io.Reader, func(), error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, func() {}, fmt.Errorf("unsupported media type: %s", ct)
	}
	if r.ContentLength > maxBytes {
		return nil, func() {}, fmt.Errorf("request body too large: %d bytes (max %d)", r.ContentLength, maxBytes)
	}
	limited := http.MaxBytesReader(w, r.Body, maxBytes)

	encoding := strings.TrimSpace(strings.ToLower(r.Header.Get("Content-Encoding")))
	switch encoding {
	case "":
		return limited, func() {}, nil
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, func() {}, fmt.Errorf("invalid gzip data: %w", err)
		}
		return &maxDecompressedReader{reader: gz, limit: maxDecompressed}, func() { gz.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

// StatusForBodyError maps errors from SafeRequestReader and decoding to a
// response status.
func StatusForBodyError(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case stderrors.Is(err, errDecompressedTooLarge), stderrors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case strings.Contains(err.Error(), "too large"):
		return http.StatusRequestEntityTooLarge
	case strings.Contains(err.Error(), "unsupported"):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
