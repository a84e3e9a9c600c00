package httptransport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/inventory"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

type recordedRequest struct {
	Method string
	URI    string
	Body   string
	Header http.Header
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Header.Get("Content-Encoding") == "gzip" {
			if gz, err := gzip.NewReader(r.Body); err == nil {
				body, _ = io.ReadAll(gz)
			}
		} else {
			body, _ = io.ReadAll(r.Body)
		}
		reqs = append(reqs, recordedRequest{Method: r.Method, URI: r.URL.RequestURI(), Body: string(body), Header: r.Header.Clone()})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithLogger(logging.Discard())), &reqs
}

func TestClient_Routes(t *testing.T) {
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			WriteJSON(w, r, http.StatusOK, []any{})
		case r.Method == http.MethodPost && r.URL.Path == "/products":
			WriteJSON(w, r, http.StatusCreated, inventory.Product{ID: 11, Name: "Bolt", Price: decimal.RequireFromString("1.25")})
		case r.Method == http.MethodPatch:
			WriteJSON(w, r, http.StatusOK, map[string]any{"id": 11})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()
	qty := int64(3)

	_, err := client.ListProducts(ctx)
	require.NoError(t, err)
	created, err := client.CreateProduct(ctx, inventory.Product{Name: "Bolt", Price: decimal.RequireFromString("1.25")})
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.ID)
	assert.True(t, decimal.RequireFromString("1.25").Equal(created.Price))
	_, err = client.UpdateProduct(ctx, 11, inventory.ProductPatch{Quantity: &qty})
	require.NoError(t, err)
	require.NoError(t, client.DeleteProduct(ctx, 11, false))
	require.NoError(t, client.DeleteProduct(ctx, 11, true))
	_, err = client.ListOrders(ctx)
	require.NoError(t, err)
	require.NoError(t, client.DeleteOrder(ctx, 4))
	require.NoError(t, client.AddTags(ctx, []string{"rush"}, []int64{4, 5}))
	require.NoError(t, client.RemoveTag(ctx, 4, "needs review"))

	var got []string
	for _, r := range *reqs {
		got = append(got, r.Method+" "+r.URI)
	}
	assert.Equal(t, []string{
		"GET /products",
		"POST /products",
		"PATCH /products/11",
		"DELETE /products/11",
		"DELETE /products/11?force=true",
		"GET /orders",
		"DELETE /orders/4",
		"POST /orders/tags",
		"DELETE /orders/4/tags/needs%20review",
	}, got)

	assert.JSONEq(t, `{"quantity":3}`, (*reqs)[2].Body)
	assert.JSONEq(t, `{"tags":["rush"],"orderIds":[4,5]}`, (*reqs)[7].Body)
	assert.Equal(t, "application/json", (*reqs)[1].Header.Get("Content-Type"))
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   errors.Kind
	}{
		{http.StatusInternalServerError, errors.KindTransient},
		{http.StatusServiceUnavailable, errors.KindTransient},
		{http.StatusConflict, errors.KindRejected},
		{http.StatusUnprocessableEntity, errors.KindRejected},
		{http.StatusNotFound, errors.KindNotFound},
		{http.StatusBadRequest, errors.KindPermanent},
		{http.StatusForbidden, errors.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, r, tt.status, "product is referenced by 2 orders", "PRODUCT_IN_USE")
			})

			err := client.DeleteProduct(context.Background(), 1, false)
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.KindOf(err))
			assert.Contains(t, err.Error(), "product is referenced by 2 orders")
			assert.Equal(t, tt.want == errors.KindTransient, errors.IsRetryable(err))
		})
	}
}

func TestClient_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, WithLogger(logging.Discard()))
	_, err := client.CreateProduct(context.Background(), inventory.Product{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, errors.KindTransient, errors.KindOf(err))
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListOrders(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_GzipRequestAndResponse(t *testing.T) {
	big := make([]inventory.Product, 200)
	for i := range big {
		big[i] = inventory.Product{ID: int64(i + 1), Name: strings.Repeat("widget ", 5), Unit: "pcs"}
	}
	client, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			WriteJSON(w, r, http.StatusOK, big)
			return
		}
		WriteJSON(w, r, http.StatusOK, map[string]any{"id": 1})
	})

	got, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 200)
	assert.Equal(t, "gzip", (*reqs)[0].Header.Get("Accept-Encoding"))

	name := strings.Repeat("n", 2048)
	_, err = client.UpdateProduct(context.Background(), 1, inventory.ProductPatch{Name: &name})
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte((*reqs)[1].Body), &body))
	assert.Equal(t, name, body["name"])
	assert.Equal(t, "gzip", (*reqs)[1].Header.Get("Content-Encoding"))
}

func TestClient_ResponseSizeLimit(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[` + strings.Repeat(`{"id":1},`, 200) + `{"id":2}]`))
	})
	client.limits = Limits{MaxBodyBytes: 256, MaxDecompressedBytes: 256}

	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindPermanent, errors.KindOf(err))
}

func TestClient_CorruptGzipResponseIsPermanent(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte(`[{"id":1}]`))
	})

	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindPermanent, errors.KindOf(err))
	assert.Contains(t, err.Error(), "transport/http")
	assert.Contains(t, err.Error(), "invalid gzip data")
}

func TestSafeRequestReader(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(bytes.Repeat([]byte("a"), 4096))
	gw.Close()

	tests := []struct {
		name     string
		body     []byte
		header   map[string]string
		wantCode int
	}{
		{"wrong media type", []byte("x"), map[string]string{"Content-Type": "text/plain"}, http.StatusUnsupportedMediaType},
		{"bad encoding", []byte("x"), map[string]string{"Content-Encoding": "br"}, http.StatusUnsupportedMediaType},
		{"invalid gzip", []byte("not gzip"), map[string]string{"Content-Encoding": "gzip"}, http.StatusBadRequest},
		{"decompression bomb", buf.Bytes(), map[string]string{"Content-Encoding": "gzip"}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(tt.body))
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			reader, cleanup, err := SafeRequestReader(w, r, 1<<20, 1024)
			defer cleanup()
			if err == nil {
				_, err = io.ReadAll(reader)
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, StatusForBodyError(err))
		})
	}
}
