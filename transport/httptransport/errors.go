package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
)

// ErrorBody is the JSON error envelope the API returns.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// KindForStatus maps a response status to the error kind the stores
// surface: 5xx is transient, 409 and 422 are business-rule rejections,
// 404 is not found and any other 4xx is permanent.
func KindForStatus(status int) errors.Kind {
	switch {
	case status >= 500:
		return errors.KindTransient
	case status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return errors.KindRejected
	case status == http.StatusNotFound:
		return errors.KindNotFound
	default:
		return errors.KindPermanent
	}
}

func codeForKind(kind errors.Kind) errors.ErrorCode {
	switch kind {
	case errors.KindTransient:
		return errors.ErrCodeRemoteFailure
	case errors.KindRejected:
		return errors.ErrCodeRejected
	default:
		return errors.ErrCodeRemoteFailure
	}
}

// statusError turns a non-2xx response into a SyncError. The body is read
// up to limit bytes.
func statusError(op errors.Operation, resp *http.Response, limit int64) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, limit))

	msg := http.StatusText(resp.StatusCode)
	var body ErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	kind := KindForStatus(resp.StatusCode)
	meta := map[string]interface{}{
		"status": resp.StatusCode,
		"method": resp.Request.Method,
		"path":   resp.Request.URL.Path,
	}
	if body.Code != "" {
		meta["code"] = body.Code
	}
	return errors.E(op, errors.Component("transport/http"), kind, codeForKind(kind), meta,
		fmt.Sprintf("server returned %d: %s", resp.StatusCode, msg))
}
