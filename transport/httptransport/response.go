package httptransport

import (
	"compress/gzip"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// CompressionThreshold is the response size above which WriteJSON gzips
// for clients that accept it.
const CompressionThreshold = 1024

// responseLogger reports write failures once the status line is out.
var responseLogger = func() *logging.Logger {
	return logging.Default().WithComponent("transport/http")
}

// WriteJSON responds with payload encoded as JSON
func WriteJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "failed to marshal response", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(response) >= CompressionThreshold && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		_, err := gz.Write(response)
		if closeErr := gz.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			responseLogger().LogError(r.Context(), err, "failed to write compressed response",
				slog.String("path", r.URL.Path), slog.Int("status", code))
		}
		return
	}
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		responseLogger().LogError(r.Context(), err, "failed to write response",
			slog.String("path", r.URL.Path), slog.Int("status", code))
	}
}

// WriteError responds with the API's error envelope
func WriteError(w http.ResponseWriter, r *http.Request, code int, message, errCode string) {
	WriteJSON(w, r, code, ErrorBody{Error: message, Code: errCode})
}
